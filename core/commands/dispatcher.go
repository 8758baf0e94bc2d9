package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/groupbot/groupbot/core"
	"github.com/groupbot/groupbot/core/policy"
)

const (
	maxConcurrentCommands = 2
	commandTimeout        = 30 * time.Second
)

// Dispatcher routes command-bearing chat messages to registered commands and
// replies with their output. It plugs into the bot as an ordinary handler.
type Dispatcher struct {
	policy    *policy.Policy
	registry  *Registry
	responder core.Responder
	logger    *slog.Logger
	sem       chan struct{}
}

// NewDispatcher creates a Dispatcher. pol may be nil to skip screening.
func NewDispatcher(pol *policy.Policy, registry *Registry, responder core.Responder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		policy:    pol,
		registry:  registry,
		responder: responder,
		logger:    logger,
		sem:       make(chan struct{}, maxConcurrentCommands),
	}
}

// Rule matches message_new events whose text carries a command.
func (d *Dispatcher) Rule() core.Rule {
	return core.NewMessageRule(core.MessageMatch{
		TextFunc: func(ev core.Event) bool {
			msg, ok := ev.Message()
			if !ok {
				return false
			}
			name, _ := ParseCommand(msg.Text)
			return name != ""
		},
	})
}

// Handle is the bot callback: authorize, parse, execute, respond.
func (d *Dispatcher) Handle(ctx context.Context, ev core.Event) error {
	msg, ok := ev.Message()
	if !ok {
		return nil
	}

	if d.policy != nil {
		if err := d.policy.Authorize(msg.PeerID, msg.ConversationMessageID, time.Unix(msg.Date, 0)); err != nil {
			d.logger.Debug("message rejected by policy", "peer_id", msg.PeerID, "error", err)
			return nil
		}
	}

	name, args := ParseCommand(msg.Text)
	if name == "" {
		return nil
	}

	cmd := d.registry.Get(name)
	if cmd == nil {
		d.respond(ctx, msg.PeerID, fmt.Sprintf("Unknown command: /%s\nSend /help for available commands.", name))
		return nil
	}

	// Non-blocking semaphore acquire.
	select {
	case d.sem <- struct{}{}:
	default:
		d.respond(ctx, msg.PeerID, "Busy, too many commands running. Try again shortly.")
		return nil
	}
	defer func() { <-d.sem }()

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := cmd.Execute(cctx, args)
	if err != nil {
		d.logger.Error("command failed", "command", name, "error", err)
		d.respond(ctx, msg.PeerID, fmt.Sprintf("Error running /%s: %s", name, err))
		return nil
	}

	d.respond(ctx, msg.PeerID, result)
	return nil
}

func (d *Dispatcher) respond(ctx context.Context, peerID int64, text string) {
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := d.responder.Respond(sctx, peerID, text); err != nil {
		d.logger.Error("failed to send reply", "peer_id", peerID, "error", err)
	}
}
