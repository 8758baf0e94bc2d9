package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventTypeMessageNew is the event type carrying an inbound chat message.
const EventTypeMessageNew = "message_new"

// Event is an immutable snapshot of one server-side notification. It is
// built once per raw update and offered to handlers for a single dispatch
// pass.
type Event struct {
	ID          string
	Type        string
	Object      json.RawMessage
	GroupID     int64
	TimeCreated time.Time
}

// rawUpdate is the wire envelope of one update in a long-poll batch.
type rawUpdate struct {
	Type    string          `json:"type"`
	Object  json.RawMessage `json:"object"`
	GroupID int64           `json:"group_id"`
}

// NewEvent wraps a raw update into an Event. The ID is generated locally and
// only used for log correlation.
func NewEvent(raw json.RawMessage) (Event, error) {
	var u rawUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return Event{}, fmt.Errorf("decode update: %w", err)
	}
	if u.Type == "" {
		return Event{}, fmt.Errorf("update has no type")
	}
	return Event{
		ID:          uuid.New().String(),
		Type:        u.Type,
		Object:      u.Object,
		GroupID:     u.GroupID,
		TimeCreated: time.Now(),
	}, nil
}

// Message is the decoded object payload of a message_new event.
type Message struct {
	Text                  string       `json:"text"`
	PeerID                int64        `json:"peer_id"`
	FromID                int64        `json:"from_id"`
	Date                  int64        `json:"date"`
	ConversationMessageID int64        `json:"conversation_message_id"`
	Payload               string       `json:"payload"`
	Attachments           []Attachment `json:"attachments"`
}

// Attachment is one media attachment on a message. Only the type tag is
// inspected here; the payload itself stays opaque.
type Attachment struct {
	Type string `json:"type"`
}

// Message decodes the event object as a chat message. ok is false when the
// event is not a message_new or the object cannot be decoded.
func (e Event) Message() (Message, bool) {
	if e.Type != EventTypeMessageNew || len(e.Object) == 0 {
		return Message{}, false
	}
	var m Message
	if err := json.Unmarshal(e.Object, &m); err != nil {
		return Message{}, false
	}
	return m, true
}
