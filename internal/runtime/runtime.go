// Package runtime defines the contracts between the chat gateway and the
// decision engine, plus the concurrent event dispatcher connecting them.
package runtime

import (
	"context"

	"github.com/parley-bot/parley/internal/policy"
)

// Sender identifies the author of a message.
type Sender struct {
	ID       int64
	Username string
}

// Message is one inbound chat message delivered by the gateway.
type Message struct {
	Text     string
	ChatID   int64
	ChatKind policy.ChatKind
	Sender   Sender
	// Command is the parsed bot command name, empty for plain text.
	Command string
	// ReplyTo is the message this one replies to, nil if none.
	ReplyTo *Message
}

// ResponseWriter sends handler responses back through the gateway.
type ResponseWriter interface {
	// WriteReply sends text as a reply to the message being handled.
	WriteReply(ctx context.Context, text string) error
}

// Handler processes one inbound message.
type Handler interface {
	HandleMessage(ctx context.Context, w ResponseWriter, msg *Message) error
}

// Listener receives gateway input and dispatches it to a Handler.
type Listener interface {
	Listen(ctx context.Context, handler Handler) error
}
