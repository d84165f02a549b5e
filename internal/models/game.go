// internal/models/game.go
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MiniGameConfig describes a registered game type. Immutable, owned by the
// game registry.
type MiniGameConfig struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	MinPlayers        int    `json:"minPlayers"`
	MaxPlayers        int    `json:"maxPlayers"`
	EstimatedDuration int    `json:"estimatedDuration"` // seconds
}

// GameAction is an inbound player action forwarded to the active engine.
// The payload shape is game-specific; engines decode what they expect and
// silently ignore the rest.
type GameAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GameState is a status-tagged public snapshot of an engine's state. It must
// never contain another player's pending secret choices.
type GameState map[string]interface{}

// RoundEndResult is produced by an engine exactly once per round and
// consumed by the session coordinator.
type RoundEndResult struct {
	WinnerID uuid.UUID              `json:"winnerId"`
	Stats    map[string]interface{} `json:"stats"`
}
