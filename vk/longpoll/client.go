package longpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/groupbot/groupbot/core"
)

const (
	// DefaultWait is the long-poll hold timeout in seconds. The server holds
	// the connection open for up to this long before answering empty.
	DefaultWait = 25

	// The HTTP timeout leaves headroom over the protocol wait; network
	// stacks may exceed the protocol-level bound.
	httpTimeoutSlack = 10 * time.Second
)

// Client issues blocking a_check fetches against a long-poll session.
// Implements core.Poller.
type Client struct {
	wait   int
	client *http.Client
	logger *slog.Logger
}

// New creates a long-poll client with the default wait.
func New(logger *slog.Logger) *Client {
	c := &Client{logger: logger}
	return c.WithWait(DefaultWait)
}

// WithWait overrides the hold timeout and resizes the HTTP timeout to match.
func (c *Client) WithWait(seconds int) *Client {
	c.wait = seconds
	c.client = &http.Client{Timeout: time.Duration(seconds)*time.Second + httpTimeoutSlack}
	return c
}

// Poll fetches one update batch. It blocks until the server responds or the
// wait elapses; cancelling ctx aborts the request.
func (c *Client) Poll(ctx context.Context, s core.Session, ts core.Cursor) (core.Batch, error) {
	q := url.Values{
		"act":  {"a_check"},
		"key":  {s.Key},
		"ts":   {string(ts)},
		"wait": {strconv.Itoa(c.wait)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Server+"?"+q.Encode(), nil)
	if err != nil {
		return core.Batch{}, fmt.Errorf("create long-poll request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.Batch{}, fmt.Errorf("long poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Batch{}, fmt.Errorf("long poll: http status %d", resp.StatusCode)
	}

	var body struct {
		Failed  int               `json:"failed"`
		TS      core.Cursor       `json:"ts"`
		Updates []json.RawMessage `json:"updates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.Batch{}, fmt.Errorf("decode long-poll response: %w", err)
	}

	c.logger.Debug("long poll answered", "failed", body.Failed, "updates", len(body.Updates))
	return core.Batch{Failed: body.Failed, TS: body.TS, Updates: body.Updates}, nil
}
