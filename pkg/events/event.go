package events

import (
	"encoding/json"
	"time"
)

// Event is a decoded server-pushed event.
type Event struct {
	// Resource is the resource tag the server attached to the event
	// (e.g. "terminal", "model").
	Resource string

	// Control is the JSON control segment.
	Control []byte

	// Segments are the binary data segments. They alias the message buffer
	// and are only valid for the duration of the listener call.
	Segments [][]byte

	// Generation identifies the connection the event arrived on.
	Generation uint64

	// ReceivedAt is the time the reader loop decoded the event.
	ReceivedAt time.Time
}

// Decode unmarshals the control segment into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Control, v)
}

// Delta is a change to the set of active subscriptions.
type Delta struct {
	Added   []string
	Removed []string
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Set is a set of subscription keys.
type Set map[string]struct{}

// Apply adds d.Added and then removes d.Removed, so a key present in both
// ends up absent.
func (s Set) Apply(d Delta) {
	for _, k := range d.Added {
		s[k] = struct{}{}
	}
	for _, k := range d.Removed {
		delete(s, k)
	}
}

// Has reports whether key is in the set.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys in unspecified order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
