// Package dispatch routes bus events to the sessions and caches they concern.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/codeready-toolchain/notifyd/pkg/bus"
	"github.com/codeready-toolchain/notifyd/pkg/logging"
	"github.com/codeready-toolchain/notifyd/pkg/metrics"
	"github.com/codeready-toolchain/notifyd/pkg/push"
)

// UserMapper resolves which users a storage path change concerns.
type UserMapper interface {
	GetUsersForStoragePath(ctx context.Context, storageID int64, path string) ([]string, error)
}

// Dispatcher turns bus events into per-user deliveries, pre-auth entries,
// cookie updates, and logging adjustments.
type Dispatcher struct {
	connections *push.ActiveConnections
	preAuth     *push.PreAuthCache
	mapper      UserMapper
	logControl  *logging.Control
	metrics     *metrics.Metrics

	testCookie atomic.Uint32
}

// NewDispatcher creates a dispatcher over the given collaborators.
func NewDispatcher(
	connections *push.ActiveConnections,
	preAuth *push.PreAuthCache,
	mapper UserMapper,
	logControl *logging.Control,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		connections: connections,
		preAuth:     preAuth,
		mapper:      mapper,
		logControl:  logControl,
		metrics:     m,
	}
}

// Dispatch routes one bus event. Routing runs on its own goroutine so a slow
// mapping lookup cannot stall the bus reader.
func (d *Dispatcher) Dispatch(event bus.Event) {
	d.metrics.EventsReceived.Inc()
	go d.route(context.Background(), event)
}

func (d *Dispatcher) route(ctx context.Context, event bus.Event) {
	switch ev := event.(type) {
	case bus.StorageUpdateEvent:
		d.routeStorageUpdate(ctx, ev)
	case bus.GroupUpdateEvent:
		d.connections.Publish(ev.User, push.FileMessage)
	case bus.ShareCreateEvent:
		d.connections.Publish(ev.User, push.FileMessage)
	case bus.ActivityEvent:
		d.connections.Publish(ev.User, push.ActivityMessage)
	case bus.NotificationEvent:
		d.connections.Publish(ev.User, push.NotificationMessage)
	case bus.CustomEvent:
		d.connections.Publish(ev.User, push.CustomMessage(ev.Message, ev.Body))
	case bus.PreAuthEvent:
		d.preAuth.Insert(ev.Token, ev.User)
	case bus.TestCookieEvent:
		d.testCookie.Store(ev.Cookie)
	case bus.ConfigEvent:
		d.applyConfig(ev)
	}
}

// routeStorageUpdate resolves the affected users through the mount mapping
// and sends each one a file hint. Lookup failures drop the event.
func (d *Dispatcher) routeStorageUpdate(ctx context.Context, ev bus.StorageUpdateEvent) {
	users, err := d.mapper.GetUsersForStoragePath(ctx, ev.StorageID, ev.Path)
	if err != nil {
		slog.Error("Failed to resolve users for storage update",
			"storage", ev.StorageID,
			"path", ev.Path,
			"error", err)
		return
	}
	for _, user := range users {
		d.connections.Publish(user, push.FileMessage)
	}
}

func (d *Dispatcher) applyConfig(ev bus.ConfigEvent) {
	switch {
	case ev.LogRestore:
		d.logControl.Restore()
		slog.Info("Restored previous log level")
	case ev.LogSpec != "":
		if err := d.logControl.PushTempSpec(ev.LogSpec); err != nil {
			slog.Warn("Ignoring invalid log spec from bus", "spec", ev.LogSpec, "error", err)
			return
		}
		slog.Info("Applied temporary log level", "spec", ev.LogSpec)
	}
}

// TestCookie returns the most recent cookie value received over the bus.
func (d *Dispatcher) TestCookie() uint32 {
	return d.testCookie.Load()
}
