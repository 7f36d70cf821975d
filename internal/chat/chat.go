// Package chat models inbound and outbound conversation events and
// hides the transport behind the Sender interface. The rest of the
// application never sees transport wire formats.
package chat

import (
	"context"
	"errors"
)

// ErrUnsupported marks inbound payloads the bot does not react to,
// such as channel posts or message edits. Handlers treat these as
// handled no-ops.
var ErrUnsupported = errors.New("unsupported update type")

// Update is one inbound event. Exactly one of Text and Callback is
// set: Text for a plain message, Callback for an inline button press.
type Update struct {
	UserID    int64
	Username  string
	ChatID    int64
	MessageID int64
	Text      string
	Callback  string
}

// Button is one inline keyboard button. Pressing it produces an
// Update whose Callback equals Data.
type Button struct {
	Label string
	Data  string
}

// Message is one outbound message. Buttons holds inline keyboard
// rows; nil means no keyboard.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}

// Sender delivers outbound messages. Implementations must honor the
// context deadline.
type Sender interface {
	Send(ctx context.Context, msg Message) error

	// ClearButtons removes the inline keyboard from a previously sent
	// message so stale buttons cannot be pressed twice.
	ClearButtons(ctx context.Context, chatID, messageID int64) error
}
