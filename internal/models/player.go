// internal/models/player.go
package models

import (
	"context"

	"github.com/google/uuid"
)

// Conn is the transport handle used to deliver a serialized payload to a
// single client. The production implementation wraps a WebSocket connection;
// tests substitute in-memory fakes.
type Conn interface {
	Write(ctx context.Context, data []byte) error
}

// Player is the identity of one connected client. A player holds at most one
// lobby membership at a time; the Conn handle is owned by the connection
// layer and is nil once the client has disconnected.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Color    string    `json:"color"`
	Score    int       `json:"score"`
	IsHost   bool      `json:"isHost"`

	Conn Conn `json:"-"`
}
