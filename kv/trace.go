package kv

import "encoding/json"

// Trace records how a key resolves through a chain of sessions, from the
// session it was requested on down to the head.
type Trace struct {
	Key    string       `json:"key"`
	Layers []Provenance `json:"layers"`
}

// Provenance describes what one store in the chain holds for the traced key.
type Provenance struct {
	// Layer is the session ID, or "head".
	Layer   string `json:"layer"`
	Value   any    `json:"value,omitempty"`
	Found   bool   `json:"found"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Effective returns the entry that decides the visible value: the first one
// that either holds the key or deletes it.
func (t Trace) Effective() (Provenance, bool) {
	for _, p := range t.Layers {
		if p.Found || p.Deleted {
			return p, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Trace walks key through s and every store beneath it. A detached session
// yields ErrDetached.
func (s *Session) Trace(key string) (Trace, error) {
	if s.parent == nil {
		return Trace{}, ErrDetached
	}
	trace := Trace{Key: key}
	var store Store = s
	for store != nil {
		switch current := store.(type) {
		case *Session:
			entry := Provenance{Layer: current.id.String()}
			if d, ok := current.deltas[key]; ok {
				entry.Deleted = d.deleted
				entry.Found = !d.deleted
				if !d.deleted {
					entry.Value = d.value
				}
			}
			trace.Layers = append(trace.Layers, entry)
			store = current.parent
		default:
			entry := Provenance{Layer: "head"}
			entry.Value, entry.Found = current.Get(key)
			trace.Layers = append(trace.Layers, entry)
			store = nil
		}
	}
	return trace, nil
}
