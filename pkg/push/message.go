// Package push implements the live connection fabric: the per-user fan-out
// index, the WebSocket session lifecycle, the send-side debouncer, and the
// pre-auth token cache.
package push

// MessageKind identifies one of the closed set of notification kinds.
type MessageKind uint8

const (
	// KindFile tells the client that files it can see changed.
	KindFile MessageKind = iota
	// KindActivity tells the client there is new activity to fetch.
	KindActivity
	// KindNotification tells the client there are new notifications.
	KindNotification
	// KindCustom carries an app-defined tag and optional body.
	KindCustom
)

// MessageType is one outbound notification. File, Activity and Notification
// carry no payload; Custom carries a tag and an optional body. Clients treat
// every message as a refresh hint, so losing one to backpressure is harmless.
type MessageType struct {
	Kind MessageKind
	Tag  string
	Body string
}

var (
	FileMessage         = MessageType{Kind: KindFile}
	ActivityMessage     = MessageType{Kind: KindActivity}
	NotificationMessage = MessageType{Kind: KindNotification}
)

// CustomMessage builds a custom notification with the given tag and body.
func CustomMessage(tag, body string) MessageType {
	return MessageType{Kind: KindCustom, Tag: tag, Body: body}
}

// String returns the ASCII wire form written to clients: "file", "activity",
// "notification", or "<tag> <body>" ("<tag>" when the body is empty).
func (m MessageType) String() string {
	switch m.Kind {
	case KindFile:
		return "file"
	case KindActivity:
		return "activity"
	case KindNotification:
		return "notification"
	case KindCustom:
		if m.Body == "" {
			return m.Tag
		}
		return m.Tag + " " + m.Body
	default:
		return "unknown"
	}
}

// debounceKey groups messages that debounce against each other: the variant
// plus, for Custom, the tag. Bodies do not distinguish.
func (m MessageType) debounceKey() string {
	switch m.Kind {
	case KindFile:
		return "file"
	case KindActivity:
		return "activity"
	case KindNotification:
		return "notification"
	case KindCustom:
		return "custom:" + m.Tag
	default:
		return "unknown"
	}
}
