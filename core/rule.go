package core

// Rule decides whether a handler should receive an event. Implementations
// must be pure: no side effects, no panics, total over all events.
type Rule interface {
	Check(Event) bool
}

// TypeRule matches events of a single type, optionally refined by a
// predicate over the event.
type TypeRule struct {
	eventType string
	refine    func(Event) bool
}

// NewTypeRule creates a rule matching events of the given type. refine may
// be nil; when set, it must also hold for the rule to match.
func NewTypeRule(eventType string, refine func(Event) bool) *TypeRule {
	return &TypeRule{eventType: eventType, refine: refine}
}

func (r *TypeRule) Check(ev Event) bool {
	if ev.Type != r.eventType {
		return false
	}
	if r.refine != nil {
		return r.refine(ev)
	}
	return true
}
