package types

// Event represents a typed event emitted during state transitions. Attribute
// values are strings (hex for addresses, decimal for amounts) so events can be
// persisted and compared without further decoding.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
