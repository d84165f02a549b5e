// internal/models/envelope.go
package models

// Envelope is the wire format for every message exchanged with clients:
// a type tag plus a type-specific payload.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}
