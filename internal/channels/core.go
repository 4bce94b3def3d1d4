package channels

import (
	"context"
	"fmt"

	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/engine"
	"github.com/parley-bot/parley/internal/logging"
	"github.com/parley-bot/parley/internal/router"
	"github.com/parley-bot/parley/internal/runtime"
	"github.com/parley-bot/parley/internal/sysinfo"
)

// Core routes each inbound message to the learning recorder, the answering
// engine, or an auxiliary command. It is the runtime.Handler the gateway
// dispatches to.
type Core struct {
	gateway  *TelegramGateway
	routes   *router.Router
	answerer *engine.Answerer
	recorder *engine.Recorder
	clock    *activity.Clock
}

var _ runtime.Handler = (*Core)(nil)

// NewCore wires the router and engine behaviors to one gateway.
func NewCore(gateway *TelegramGateway, routes *router.Router, answerer *engine.Answerer, recorder *engine.Recorder, clock *activity.Clock) *Core {
	return &Core{
		gateway:  gateway,
		routes:   routes,
		answerer: answerer,
		recorder: recorder,
		clock:    clock,
	}
}

// HandleMessage executes exactly one behavior for msg.
func (c *Core) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	switch c.routes.Route(msg) {
	case router.RouteLearn:
		return c.recorder.HandleReplyPair(ctx, msg.ReplyTo, msg)
	case router.RouteAnswer:
		_, err := c.answerer.HandleIncomingText(ctx, w, msg)
		return err
	case router.RouteCommand:
		return c.runCommand(ctx, w, msg)
	default:
		return nil
	}
}

func (c *Core) runCommand(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	switch msg.Command {
	case router.CommandLeave:
		logging.Logger().Info("leaving chat", "chat_id", msg.ChatID)
		return c.gateway.LeaveChat(ctx, msg.ChatID)
	case router.CommandSysinfo:
		report, err := sysinfo.Report(ctx)
		if err != nil {
			return fmt.Errorf("collect system report: %w", err)
		}
		if err := w.WriteReply(ctx, report); err != nil {
			return fmt.Errorf("send system report: %w", err)
		}
		c.clock.Touch()
		return nil
	case router.CommandPhoto:
		logging.Logger().Info("taking photo", "chat_id", msg.ChatID)
		c.clock.Touch()
		if err := c.gateway.SendSnapshotPhoto(ctx, msg.ChatID); err != nil {
			logging.Logger().Warn("snapshot failed", "err", err)
			return w.WriteReply(ctx, "Unable to get photo")
		}
		return nil
	case router.CommandDebug:
		logging.Logger().Info("debug",
			"username", msg.Sender.Username,
			"user_id", msg.Sender.ID,
			"chat_id", msg.ChatID,
		)
		return nil
	default:
		return nil
	}
}
