package push

import "time"

// DebounceIntervals holds the minimum gap between two wire frames of the
// same kind on a single socket. File and activity events arrive in bursts
// (a sync client touching many files), so they get the widest windows.
// Custom messages pass through unfiltered.
type DebounceIntervals struct {
	File         time.Duration
	Activity     time.Duration
	Notification time.Duration
	Custom       time.Duration
}

// DefaultDebounceIntervals returns the production intervals.
func DefaultDebounceIntervals() DebounceIntervals {
	return DebounceIntervals{
		File:         60 * time.Second,
		Activity:     120 * time.Second,
		Notification: 30 * time.Second,
		Custom:       0,
	}
}

type debounceState struct {
	kind     MessageKind
	lastSend time.Time
	held     *MessageType
}

// DebounceMap coalesces messages per kind for one session: each kind gets at
// most one send per interval, and the most recent suppressed message is held
// for a later flush. Owned by the session's sender goroutine; not safe for
// concurrent use.
type DebounceMap struct {
	intervals DebounceIntervals
	state     map[string]*debounceState
}

// NewDebounceMap creates a debouncer with the given intervals.
func NewDebounceMap(intervals DebounceIntervals) *DebounceMap {
	return &DebounceMap{
		intervals: intervals,
		state:     make(map[string]*debounceState),
	}
}

func (d *DebounceMap) interval(kind MessageKind) time.Duration {
	switch kind {
	case KindFile:
		return d.intervals.File
	case KindActivity:
		return d.intervals.Activity
	case KindNotification:
		return d.intervals.Notification
	default:
		return d.intervals.Custom
	}
}

// ShouldSend reports whether msg may be written now. On true the last-send
// time advances and any held message of the kind is discarded, since msg is
// newer. On false msg replaces the held slot for its kind.
func (d *DebounceMap) ShouldSend(msg MessageType) bool {
	key := msg.debounceKey()
	st := d.state[key]
	if st == nil {
		st = &debounceState{kind: msg.Kind}
		d.state[key] = st
	}
	if time.Since(st.lastSend) > d.interval(msg.Kind) {
		st.lastSend = time.Now()
		st.held = nil
		return true
	}
	held := msg
	st.held = &held
	return false
}

// HasHeldMessages reports whether any kind has a suppressed message waiting.
func (d *DebounceMap) HasHeldMessages() bool {
	for _, st := range d.state {
		if st.held != nil {
			return true
		}
	}
	return false
}

// DrainHeldMessages returns and clears all held messages. The caller re-runs
// each one through ShouldSend; still-debounced messages are stashed again.
// Entries that hold nothing and are past their interval are dropped to keep
// the map small.
func (d *DebounceMap) DrainHeldMessages() []MessageType {
	var out []MessageType
	for key, st := range d.state {
		if st.held != nil {
			out = append(out, *st.held)
			st.held = nil
			continue
		}
		if time.Since(st.lastSend) > d.interval(st.kind) {
			delete(d.state, key)
		}
	}
	return out
}
