package core

import (
	"context"
	"fmt"
)

// HandlerFunc is the callback invoked when a rule accepts an event. A
// returned error is logged by the dispatch loop and does not stop it.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handler pairs a rule with a callback. Immutable after registration.
type Handler struct {
	rule Rule
	fn   HandlerFunc
}

// NewHandler creates a handler from a rule and callback.
func NewHandler(rule Rule, fn HandlerFunc) Handler {
	return Handler{rule: rule, fn: fn}
}

// Handle offers the event to the handler. accepted reports whether the rule
// matched; err carries a callback failure. A panic inside the callback is
// recovered and returned as an error so one handler cannot kill the loop.
func (h Handler) Handle(ctx context.Context, ev Event) (accepted bool, err error) {
	if h.rule == nil || !h.rule.Check(ev) {
		return false, nil
	}
	accepted = true
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	err = h.fn(ctx, ev)
	return accepted, err
}
