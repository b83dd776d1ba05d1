// Package logging configures the process-wide slog logger and exposes a
// runtime-adjustable level. Bus config events can push a temporary level
// (e.g. "debug" while investigating an incident) and later restore the
// previous one without restarting the daemon.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Control owns the log level: the configured base level plus a stack of
// temporary overrides. All mutation goes through PushTempSpec/Restore.
type Control struct {
	mu    sync.Mutex
	level slog.LevelVar
	stack []slog.Level
}

// Setup parses the configured level, installs the default slog logger with a
// handler bound to the adjustable level, and returns the Control handle.
func Setup(spec string) (*Control, error) {
	level, err := ParseLevel(spec)
	if err != nil {
		return nil, err
	}

	c := &Control{}
	c.level.Set(level)

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &c.level})
	slog.SetDefault(slog.New(handler))
	return c, nil
}

// PushTempSpec remembers the current level and switches to the given one.
func (c *Control) PushTempSpec(spec string) error {
	level, err := ParseLevel(spec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack = append(c.stack, c.level.Level())
	c.level.Set(level)
	return nil
}

// Restore pops the most recent temporary level. A Restore without a matching
// push is a no-op.
func (c *Control) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		return
	}
	c.level.Set(c.stack[len(c.stack)-1])
	c.stack = c.stack[:len(c.stack)-1]
}

// Level returns the currently effective level.
func (c *Control) Level() slog.Level {
	return c.level.Level()
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(spec string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", spec)
	}
}
