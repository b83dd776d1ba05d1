package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// reconnectDelay is the pause between subscription attempts after the bus
// connection is lost.
const reconnectDelay = time.Second

// Handler consumes decoded bus events. It must not block: slow work belongs
// on its own goroutine so the subscriber keeps up with the channel.
type Handler func(Event)

// Listener maintains a Redis subscription to the push channel and feeds every
// decoded event to its handler. The subscription is re-established after
// failures until the listener is stopped.
type Listener struct {
	redisURL string
	channel  string
	handler  Handler

	// cancelLoop and loopDone coordinate graceful shutdown of the receive loop.
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewListener creates a bus listener for the given Redis URL and channel.
func NewListener(redisURL, channel string, handler Handler) *Listener {
	return &Listener{
		redisURL: redisURL,
		channel:  channel,
		handler:  handler,
	}
}

// Start validates the Redis URL and begins receiving events in the
// background. Connection failures are retried inside the loop, so a Redis
// server that is down at startup only delays delivery.
func (l *Listener) Start(ctx context.Context) error {
	opts, err := redis.ParseURL(l.redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx, opts)
	}()

	slog.Info("Bus listener started", "channel", l.channel)
	return nil
}

// receiveLoop keeps one subscription alive at a time, sleeping between
// attempts so a flapping Redis server is not hammered.
func (l *Listener) receiveLoop(ctx context.Context, opts *redis.Options) {
	for {
		err := l.subscribeOnce(ctx, opts)
		if ctx.Err() != nil {
			return
		}
		slog.Error("Bus subscription lost", "channel", l.channel, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// subscribeOnce opens a fresh client, subscribes, and consumes events until
// the subscription breaks or the context is cancelled.
func (l *Listener) subscribeOnce(ctx context.Context, opts *redis.Options) error {
	client := redis.NewClient(opts)
	defer func() {
		_ = client.Close()
	}()

	pubsub := client.Subscribe(ctx, l.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	// Confirm the subscription before trusting the message channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}
	slog.Info("Subscribed to bus channel", "channel", l.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", l.channel)
			}
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				slog.Warn("Dropping malformed bus event", "error", err, "payload", msg.Payload)
				continue
			}
			l.handler(event)
		}
	}
}

// Stop signals the receive loop to exit and waits for it to finish.
func (l *Listener) Stop() {
	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}
	slog.Info("Bus listener stopped")
}
