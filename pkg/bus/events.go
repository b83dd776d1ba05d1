package bus

import (
	"encoding/json"
	"fmt"
)

// Event is one message received from the push bus. The concrete types below
// are the closed set of events the companion app publishes.
type Event interface {
	isEvent()
}

// StorageUpdateEvent announces a change somewhere inside a storage; the
// affected users are resolved through the mount mapping.
type StorageUpdateEvent struct {
	StorageID int64
	Path      string
}

// GroupUpdateEvent announces a group membership change affecting a user.
type GroupUpdateEvent struct {
	User string
}

// ShareCreateEvent announces a new incoming share for a user.
type ShareCreateEvent struct {
	User string
}

// ActivityEvent announces new activity entries for a user.
type ActivityEvent struct {
	User string
}

// NotificationEvent announces new notifications for a user.
type NotificationEvent struct {
	User string
}

// CustomEvent carries an app-defined message for a user.
type CustomEvent struct {
	User    string
	Message string
	Body    string
}

// PreAuthEvent registers a short-lived login token for a user.
type PreAuthEvent struct {
	User  string
	Token string
}

// TestCookieEvent updates the locally stored test cookie.
type TestCookieEvent struct {
	Cookie uint32
}

// ConfigEvent adjusts the logging configuration at runtime. Exactly one of
// LogSpec (push a temporary level) or LogRestore (pop it) is set.
type ConfigEvent struct {
	LogSpec    string
	LogRestore bool
}

func (StorageUpdateEvent) isEvent() {}
func (GroupUpdateEvent) isEvent()   {}
func (ShareCreateEvent) isEvent()   {}
func (ActivityEvent) isEvent()      {}
func (NotificationEvent) isEvent()  {}
func (CustomEvent) isEvent()        {}
func (PreAuthEvent) isEvent()       {}
func (TestCookieEvent) isEvent()    {}
func (ConfigEvent) isEvent()        {}

// envelope is the flat JSON shape of every bus message, tagged by "event".
type envelope struct {
	Event      string          `json:"event"`
	Storage    int64           `json:"storage"`
	Path       string          `json:"path"`
	User       string          `json:"user"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
	Token      string          `json:"token"`
	Cookie     uint32          `json:"cookie"`
	LogSpec    string          `json:"log_spec"`
	LogRestore bool            `json:"log_restore"`
}

// DecodeEvent parses one bus payload into its typed event.
func DecodeEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode bus event: %w", err)
	}

	switch env.Event {
	case "storage_update":
		return StorageUpdateEvent{StorageID: env.Storage, Path: env.Path}, nil
	case "group_update":
		return GroupUpdateEvent{User: env.User}, nil
	case "share_create":
		return ShareCreateEvent{User: env.User}, nil
	case "activity":
		return ActivityEvent{User: env.User}, nil
	case "notification":
		return NotificationEvent{User: env.User}, nil
	case "custom":
		return CustomEvent{User: env.User, Message: env.Message, Body: customBody(env.Body)}, nil
	case "pre_auth":
		return PreAuthEvent{User: env.User, Token: env.Token}, nil
	case "test_cookie":
		return TestCookieEvent{Cookie: env.Cookie}, nil
	case "config":
		return ConfigEvent{LogSpec: env.LogSpec, LogRestore: env.LogRestore}, nil
	default:
		return nil, fmt.Errorf("unknown bus event %q", env.Event)
	}
}

// customBody renders the optional custom event body as the text appended to
// the message tag on the wire. String bodies are used verbatim, any other
// JSON value keeps its serialized form.
func customBody(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
