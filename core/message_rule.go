package core

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
)

// MessageMatch enumerates the optional matching conditions for a
// MessageRule. Every field may be left unset; a rule with no conditions
// configured matches nothing.
type MessageMatch struct {
	// AttachmentTypes matches when any attachment on the message carries one
	// of these type tags.
	AttachmentTypes []string
	// Payload matches when the message payload structurally equals this map.
	Payload map[string]any
	// TextFunc and MessageFunc are free-form predicates over the event.
	TextFunc    func(Event) bool
	MessageFunc func(Event) bool
	// Pattern matches when the message text matches it at the start of the
	// string (prefix, not full-string).
	Pattern *regexp.Regexp
	// Commands matches when the message text contains any of these strings.
	Commands []string
}

// MessageRule matches message_new events against any of the configured
// conditions. The conditions combine with OR: one holding is sufficient.
type MessageRule struct {
	match           MessageMatch
	attachmentTypes map[string]bool
}

// NewMessageRule creates a rule from the given match configuration.
func NewMessageRule(m MessageMatch) *MessageRule {
	r := &MessageRule{match: m}
	if len(m.AttachmentTypes) > 0 {
		r.attachmentTypes = make(map[string]bool, len(m.AttachmentTypes))
		for _, t := range m.AttachmentTypes {
			r.attachmentTypes[t] = true
		}
	}
	return r
}

func (r *MessageRule) Check(ev Event) bool {
	if ev.Type != EventTypeMessageNew {
		return false
	}
	msg, ok := ev.Message()
	if !ok {
		return false
	}

	if len(r.attachmentTypes) > 0 {
		for _, a := range msg.Attachments {
			if r.attachmentTypes[a.Type] {
				return true
			}
		}
	}
	if r.match.Payload != nil && payloadEqual(msg.Payload, r.match.Payload) {
		return true
	}
	if r.match.TextFunc != nil && r.match.TextFunc(ev) {
		return true
	}
	if r.match.MessageFunc != nil && r.match.MessageFunc(ev) {
		return true
	}
	if r.match.Pattern != nil && matchesAtStart(r.match.Pattern, msg.Text) {
		return true
	}
	for _, cmd := range r.match.Commands {
		if cmd != "" && strings.Contains(msg.Text, cmd) {
			return true
		}
	}
	return false
}

// matchesAtStart reports whether the pattern matches a prefix of text,
// regardless of anchoring in the pattern itself.
func matchesAtStart(re *regexp.Regexp, text string) bool {
	loc := re.FindStringIndex(text)
	return loc != nil && loc[0] == 0
}

// payloadEqual compares the message's JSON-encoded payload against the
// configured map. An absent or undecodable payload never matches.
func payloadEqual(raw string, want map[string]any) bool {
	if raw == "" {
		return false
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		return false
	}
	// Round-trip the configured map through JSON so numeric types compare
	// on equal footing.
	b, err := json.Marshal(want)
	if err != nil {
		return false
	}
	var norm map[string]any
	if err := json.Unmarshal(b, &norm); err != nil {
		return false
	}
	return reflect.DeepEqual(got, norm)
}
