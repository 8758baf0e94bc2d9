package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/groupbot/groupbot/internal/metrics"
)

// fallbackTS is adopted when a successful batch carries no cursor. Not
// expected from a well-behaved server.
const fallbackTS = Cursor("1")

// Bot owns the ordered handler list and runs the poll-fetch-dispatch cycle:
// acquire a long-poll session, fetch update batches with the current cursor,
// offer each update to handlers in registration order.
type Bot struct {
	sessions SessionProvider
	poller   Poller
	logger   *slog.Logger
	handlers registry
}

// New creates a Bot. Handlers are registered afterwards; registration is
// append-only and safe to interleave with a running loop.
func New(sessions SessionProvider, poller Poller, logger *slog.Logger) *Bot {
	return &Bot{
		sessions: sessions,
		poller:   poller,
		logger:   logger,
	}
}

// HandleMessage registers a handler for message_new events selected by the
// given match configuration.
func (b *Bot) HandleMessage(match MessageMatch, fn HandlerFunc) {
	b.register(NewMessageRule(match), fn)
}

// HandleEvent registers a handler guarded by an explicit rule.
func (b *Bot) HandleEvent(rule Rule, fn HandlerFunc) {
	b.register(rule, fn)
}

// HandleEventType registers a handler for all events of the given type.
func (b *Bot) HandleEventType(eventType string, fn HandlerFunc) {
	b.register(NewTypeRule(eventType, nil), fn)
}

func (b *Bot) register(rule Rule, fn HandlerFunc) {
	b.handlers.add(NewHandler(rule, fn))
	metrics.SetRegisteredHandlers(b.handlers.len())
}

// Run processes long-poll sessions until the context is cancelled, acquiring
// a fresh session whenever the server invalidates the current one.
func (b *Bot) Run(ctx context.Context) error {
	for {
		if err := b.runSession(ctx); err != nil {
			return err
		}
	}
}

// RunOnce processes a single long-poll session and returns once the server
// invalidates it. This is the single-pass mode of Run.
func (b *Bot) RunOnce(ctx context.Context) error {
	return b.runSession(ctx)
}

// runSession drives one session: AcquireServer, then PollBatch and
// DispatchBatch until the session is invalidated or ctx is cancelled. A nil
// return means the session ended and may be re-acquired; only context errors
// are returned.
func (b *Bot) runSession(ctx context.Context) error {
	s, err := b.acquireSession(ctx)
	if err != nil {
		return err
	}
	ts := s.TS

	retry := newTransportBackoff()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := b.poller.Poll(ctx, s, ts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.IncPoll("error")
			wait := retry.NextBackOff()
			b.logger.Error("long poll failed", "error", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retry.Reset()

		if batch.Failed != 0 {
			metrics.IncPoll("failed")
			metrics.IncPollFailure(batch.Failed)
			b.logger.Error("long poll rejected", "code", batch.Failed)
			if batch.Failed == FailedStaleHistory {
				// Failure responses carry no updates; re-poll with the same
				// cursor and let the server supply a fresh one.
				continue
			}
			b.logger.Info("long-poll session invalidated", "code", batch.Failed)
			return nil
		}

		metrics.IncPoll("ok")
		metrics.AddUpdates(len(batch.Updates))
		b.dispatch(ctx, batch.Updates)

		ts = batch.TS
		if ts == "" {
			ts = fallbackTS
		}
	}
}

// dispatch runs one dispatch pass per update: handlers are offered the event
// in registration order and the first acceptance wins. Callback failures are
// logged and never stop the loop.
func (b *Bot) dispatch(ctx context.Context, updates []json.RawMessage) {
	handlers := b.handlers.snapshot()
	for _, raw := range updates {
		if ctx.Err() != nil {
			return
		}

		ev, err := NewEvent(raw)
		if err != nil {
			metrics.IncEvent("malformed")
			b.logger.Error("skipping malformed update", "error", err)
			continue
		}

		start := time.Now()
		handled := false
		for _, h := range handlers {
			accepted, err := h.Handle(ctx, ev)
			if err != nil {
				metrics.IncHandlerError()
				b.logger.Error("handler failed", "event_id", ev.ID, "type", ev.Type, "error", err)
			}
			if accepted {
				handled = true
				break
			}
		}
		metrics.ObserveDispatchDuration(time.Since(start))

		if handled {
			metrics.IncEvent("handled")
		} else {
			metrics.IncEvent("unhandled")
			b.logger.Warn("no handler accepted event", "event_id", ev.ID, "type", ev.Type)
		}
	}
}

// acquireSession requests a fresh session descriptor, retrying with
// exponential backoff until it succeeds or ctx is cancelled.
func (b *Bot) acquireSession(ctx context.Context) (Session, error) {
	b.logger.Info("acquiring long-poll session")

	var s Session
	op := func() error {
		var err error
		s, err = b.sessions.LongPollSession(ctx)
		if err != nil {
			b.logger.Error("acquire long-poll session failed", "error", err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(newTransportBackoff(), ctx)); err != nil {
		return Session{}, err
	}

	metrics.IncSessionAcquired()
	b.logger.Info("long-poll session acquired", "server", s.Server)
	return s, nil
}

func newTransportBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
