// Package router maps each inbound chat event to exactly one behavior.
package router

import (
	"strings"

	"github.com/parley-bot/parley/internal/runtime"
)

// Route identifies the behavior an event is dispatched to.
type Route int

const (
	// RouteNone drops the event.
	RouteNone Route = iota
	// RouteCommand dispatches to a named auxiliary command handler.
	RouteCommand
	// RouteLearn dispatches to the learning recorder.
	RouteLearn
	// RouteAnswer dispatches to the answering engine.
	RouteAnswer
)

// Commands the bot recognizes.
const (
	CommandLeave   = "leave"
	CommandSysinfo = "sysinfo"
	CommandPhoto   = "photo"
	CommandDebug   = "debug"
)

var knownCommands = map[string]struct{}{
	CommandLeave:   {},
	CommandSysinfo: {},
	CommandPhoto:   {},
	CommandDebug:   {},
}

// Router routes inbound events by shape. Learning and answering are
// independently toggleable at startup.
type Router struct {
	learning  bool
	answering bool
}

// New creates a router with the given behavior toggles.
func New(learning, answering bool) *Router {
	return &Router{learning: learning, answering: answering}
}

// Route decides the single behavior for msg. Precedence: command name first,
// then the reply-to relation, then plain text.
func (r *Router) Route(msg *runtime.Message) Route {
	if msg == nil {
		return RouteNone
	}
	if cmd := strings.TrimSpace(msg.Command); cmd != "" {
		if _, ok := knownCommands[cmd]; ok {
			return RouteCommand
		}
		// An unrecognized slash command is just text to everyone else.
	}
	// Precedence applies over enabled behaviors only: with learning off, a
	// reply that is also plain text still reaches the answering engine.
	if msg.ReplyTo != nil && r.learning {
		return RouteLearn
	}
	if strings.TrimSpace(msg.Text) != "" && r.answering {
		return RouteAnswer
	}
	return RouteNone
}
