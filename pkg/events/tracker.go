package events

import "encoding/json"

// Tracker derives subscription deltas from response and event content.
// The connection applies the returned delta to its subscription set and
// stays open while the set is non-empty.
type Tracker interface {
	// ResponseDelta is called for every correlated response.
	ResponseDelta(resource, method string, control []byte) Delta

	// EventDelta is called for every pushed event.
	EventDelta(ev *Event) Delta
}

// Default field names read by FieldTracker.
const (
	DefaultSubscribeField   = "subscribe"
	DefaultUnsubscribeField = "unsubscribe"
)

// FieldTracker reads subscription keys from fields of the control JSON.
//
// Each field may hold a string or an array of strings and is looked up at
// the top level and inside an "Ok" result wrapper:
//
//	{"Ok": {"session": "s1", "subscribe": ["terminal:s1"]}}
//	{"unsubscribe": "terminal:s1", "reason": "exited"}
type FieldTracker struct {
	SubscribeField   string
	UnsubscribeField string
}

// NewFieldTracker returns a FieldTracker using the default field names.
func NewFieldTracker() *FieldTracker {
	return &FieldTracker{
		SubscribeField:   DefaultSubscribeField,
		UnsubscribeField: DefaultUnsubscribeField,
	}
}

// ResponseDelta implements Tracker.
func (t *FieldTracker) ResponseDelta(resource, method string, control []byte) Delta {
	return t.delta(control)
}

// EventDelta implements Tracker.
func (t *FieldTracker) EventDelta(ev *Event) Delta {
	return t.delta(ev.Control)
}

func (t *FieldTracker) delta(control []byte) Delta {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(control, &top); err != nil {
		return Delta{}
	}

	d := Delta{
		Added:   keys(top[t.SubscribeField]),
		Removed: keys(top[t.UnsubscribeField]),
	}
	if ok, found := top["Ok"]; found {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(ok, &inner); err == nil {
			d.Added = append(d.Added, keys(inner[t.SubscribeField])...)
			d.Removed = append(d.Removed, keys(inner[t.UnsubscribeField])...)
		}
	}
	return d
}

// keys decodes a string or an array of strings.
func keys(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// NopTracker never changes the subscription set.
type NopTracker struct{}

// ResponseDelta implements Tracker.
func (NopTracker) ResponseDelta(string, string, []byte) Delta { return Delta{} }

// EventDelta implements Tracker.
func (NopTracker) EventDelta(*Event) Delta { return Delta{} }
