package sshsession

// NotificationKind tags a Notification. The values double as the "type"
// field on the wire.
type NotificationKind string

const (
	NotifyData    NotificationKind = "data"
	NotifyClosed  NotificationKind = "closed"
	NotifyErrored NotificationKind = "error"
)

// Notification is what the presentation layer learns about a session.
// Data is opaque terminal output and is never modified.
type Notification struct {
	Kind      NotificationKind `json:"type"`
	SessionID string           `json:"session_id"`
	Data      []byte           `json:"data,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Sink receives every notification produced by a Manager. Publish is called
// with the session's delivery lock held, so it must not block for long and
// must not call back into the Manager.
type Sink interface {
	Publish(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification)

func (f SinkFunc) Publish(n Notification) {
	f(n)
}
