package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Long-poll failure codes, as reported in the response's failed field.
const (
	// FailedStaleHistory means the event history behind the cursor is
	// outdated; re-poll with the same cursor.
	FailedStaleHistory = 1
	// FailedKeyExpired and FailedServerChanged invalidate the session; a
	// fresh descriptor must be acquired.
	FailedKeyExpired    = 2
	FailedServerChanged = 3
)

// Cursor is the opaque long-poll progress token. The server encodes it as a
// JSON string or a number depending on API version; both decode to their
// literal text.
type Cursor string

func (c *Cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cursor must be a string or number: %w", err)
	}
	*c = Cursor(n.String())
	return nil
}

// Session is a long-poll session descriptor handed out by the API.
type Session struct {
	Server string
	Key    string
	TS     Cursor
}

// Batch is the result of one long-poll fetch: either a failure code or zero
// or more raw updates plus the next cursor.
type Batch struct {
	Failed  int
	TS      Cursor
	Updates []json.RawMessage
}

// SessionProvider obtains a fresh long-poll session from the remote API.
type SessionProvider interface {
	LongPollSession(ctx context.Context) (Session, error)
}

// Poller issues one blocking long-wait fetch against a session. It is the
// loop's single suspension point and must honor ctx cancellation.
type Poller interface {
	Poll(ctx context.Context, s Session, ts Cursor) (Batch, error)
}

// Responder sends a text reply into a peer.
type Responder interface {
	Respond(ctx context.Context, peerID int64, text string) error
}
