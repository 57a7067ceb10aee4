package domain

import "time"

// EventKind distinguishes how an inbound event arrived.
type EventKind string

const (
	// KindCommand is a slash command typed by the user (/start, /connectwallet).
	KindCommand EventKind = "command"
	// KindCallback is an inline-keyboard button press.
	KindCallback EventKind = "callback"
)

// Event is a single inbound interaction, already parsed by the transport.
type Event struct {
	Kind      EventKind
	Name      string   // command name or callback payload
	Args      []string // command arguments (empty for callbacks)
	UserID    int64
	ChatID    int64
	MessageID int // message carrying the pressed keyboard; used for edits
	Timestamp time.Time
}

// Button is one inline-keyboard button. Either Data (callback payload) or
// URL (external link) is set, never both.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Reply is the abstract outbound message produced by the flow controller.
// The transport decides how to render it: Edit replaces the message that
// carried the pressed keyboard, otherwise a new message is appended.
type Reply struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  [][]Button
	Edit      bool
}
