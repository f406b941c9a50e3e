package provider

// NameMap is a bidirectional tool-name mapping between the generic
// vocabulary and the wire vocabulary. The OAuth-authenticated endpoint
// rejects a small closed set of generic tool names; everything outside the
// map passes through unchanged in both directions.
type NameMap struct {
	toWire   map[string]string
	fromWire map[string]string
}

// NewNameMap builds a NameMap from generic-to-wire pairs. The inverse
// direction is derived, so the mapping round-trips by construction.
func NewNameMap(pairs map[string]string) NameMap {
	toWire := make(map[string]string, len(pairs))
	fromWire := make(map[string]string, len(pairs))
	for generic, wire := range pairs {
		toWire[generic] = wire
		fromWire[wire] = generic
	}
	return NameMap{toWire: toWire, fromWire: fromWire}
}

// DefaultNameMap returns the fixed allow-list rewrite required by the
// OAuth-authenticated messages endpoint.
func DefaultNameMap() NameMap {
	return NewNameMap(map[string]string{
		"read_file": "ReadFile",
	})
}

// ToWire maps a generic tool name to wire vocabulary.
func (m NameMap) ToWire(name string) string {
	if wire, ok := m.toWire[name]; ok {
		return wire
	}
	return name
}

// FromWire maps a wire tool name back to generic vocabulary.
func (m NameMap) FromWire(name string) string {
	if generic, ok := m.fromWire[name]; ok {
		return generic
	}
	return name
}
