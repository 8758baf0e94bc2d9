package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/groupbot/groupbot/core"
	"github.com/groupbot/groupbot/core/policy"
)

// --- test helpers ---

type spyResponder struct {
	mu   sync.Mutex
	sent []string
}

func (s *spyResponder) Respond(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *spyResponder) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

func (s *spyResponder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type echoCommand struct{}

func (e *echoCommand) Name() string        { return "echo" }
func (e *echoCommand) Description() string { return "echoes args" }
func (e *echoCommand) Execute(_ context.Context, args string) (string, error) {
	return "echo: " + args, nil
}

type failCommand struct{}

func (f *failCommand) Name() string        { return "fail" }
func (f *failCommand) Description() string { return "always fails" }
func (f *failCommand) Execute(context.Context, string) (string, error) {
	return "", fmt.Errorf("something broke")
}

type slowCommand struct{}

func (s *slowCommand) Name() string        { return "slow" }
func (s *slowCommand) Description() string { return "slow command" }
func (s *slowCommand) Execute(ctx context.Context, _ string) (string, error) {
	select {
	case <-time.After(5 * time.Second):
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(spy *spyResponder, cmds ...Command) *Dispatcher {
	reg := NewRegistry()
	for _, c := range cmds {
		reg.Register(c)
	}
	return NewDispatcher(policy.New(nil), reg, spy, testLogger())
}

var cmidCounter int64

func commandEvent(t *testing.T, text string) core.Event {
	t.Helper()
	cmidCounter++
	raw, err := json.Marshal(map[string]any{
		"type": core.EventTypeMessageNew,
		"object": map[string]any{
			"text":                    text,
			"peer_id":                 100,
			"from_id":                 1,
			"date":                    time.Now().Unix(),
			"conversation_message_id": cmidCounter,
		},
		"group_id": 1,
	})
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	ev, err := core.NewEvent(raw)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return ev
}

// --- tests ---

func TestDispatchCommand(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy, &echoCommand{})

	d.Handle(context.Background(), commandEvent(t, "/echo hello world"))

	if spy.count() != 1 {
		t.Fatalf("sent %d, want 1", spy.count())
	}
	if got := spy.lastText(); got != "echo: hello world" {
		t.Errorf("text = %q, want %q", got, "echo: hello world")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy)

	d.Handle(context.Background(), commandEvent(t, "/foobar"))

	if spy.count() != 1 {
		t.Fatalf("sent %d, want 1", spy.count())
	}
	if !strings.Contains(spy.lastText(), "Unknown command") {
		t.Errorf("text = %q, want 'Unknown command'", spy.lastText())
	}
	if !strings.Contains(spy.lastText(), "/help") {
		t.Errorf("text = %q, should suggest /help", spy.lastText())
	}
}

func TestDispatchNonCommand(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy, &echoCommand{})

	d.Handle(context.Background(), commandEvent(t, "just a regular message"))

	if spy.count() != 0 {
		t.Errorf("sent %d for non-command, want 0", spy.count())
	}
}

func TestDispatchCommandError(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy, &failCommand{})

	d.Handle(context.Background(), commandEvent(t, "/fail"))

	if spy.count() != 1 {
		t.Fatalf("sent %d, want 1", spy.count())
	}
	if !strings.Contains(spy.lastText(), "Error running /fail") {
		t.Errorf("text = %q, want error message", spy.lastText())
	}
}

func TestDispatchConcurrencyLimit(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy, &slowCommand{})

	// Fill the semaphore.
	d.sem <- struct{}{}
	d.sem <- struct{}{}

	d.Handle(context.Background(), commandEvent(t, "/slow"))

	<-d.sem
	<-d.sem

	if spy.count() != 1 {
		t.Fatalf("sent %d, want 1", spy.count())
	}
	if !strings.Contains(spy.lastText(), "Busy") {
		t.Errorf("text = %q, want 'Busy'", spy.lastText())
	}
}

func TestDispatchPolicyRejection(t *testing.T) {
	spy := &spyResponder{}
	reg := NewRegistry()
	reg.Register(&echoCommand{})
	d := NewDispatcher(policy.New([]int64{999}), reg, spy, testLogger())

	d.Handle(context.Background(), commandEvent(t, "/echo test"))

	if spy.count() != 0 {
		t.Errorf("sent %d for disallowed peer, want 0", spy.count())
	}
}

func TestDispatchStaleMessage(t *testing.T) {
	spy := &spyResponder{}
	d := newTestDispatcher(spy, &echoCommand{})

	cmidCounter++
	raw, _ := json.Marshal(map[string]any{
		"type": core.EventTypeMessageNew,
		"object": map[string]any{
			"text":                    "/echo test",
			"peer_id":                 100,
			"date":                    time.Now().Add(-10 * time.Minute).Unix(),
			"conversation_message_id": cmidCounter,
		},
		"group_id": 1,
	})
	ev, err := core.NewEvent(raw)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	d.Handle(context.Background(), ev)

	if spy.count() != 0 {
		t.Errorf("sent %d for stale message, want 0", spy.count())
	}
}

func TestDispatcherRule(t *testing.T) {
	d := newTestDispatcher(&spyResponder{}, &echoCommand{})
	rule := d.Rule()

	if !rule.Check(commandEvent(t, "/echo hi")) {
		t.Error("rule should accept a command message")
	}
	if rule.Check(commandEvent(t, "plain text")) {
		t.Error("rule should reject a non-command message")
	}
}
