// internal/game/engine.go
package game

import (
	"github.com/google/uuid"

	"github.com/minigameshq/minigames/internal/models"
)

// Engine is the uniform lifecycle contract every mini-game implements.
// One engine instance serves one lobby at a time; the session coordinator
// drives it through Initialize, polls CheckRoundEnd on each tick, and calls
// Reset between rounds.
//
// Implementations must be safe for concurrent use: internal timers fire on
// their own goroutines, while actions and ticks arrive from connection and
// coordinator goroutines.
type Engine interface {
	// Config returns the immutable descriptor for this game type.
	Config() models.MiniGameConfig

	// Initialize (re)sets internal state for a fresh round with the given
	// players, arming any internal timers.
	Initialize(players []*models.Player)

	// HandleAction applies a player action. Invalid, out-of-phase or
	// duplicate actions are silently ignored; no error surfaces here.
	HandleAction(playerID uuid.UUID, action models.GameAction)

	// HandleDisconnect removes a player mid-round. Called synchronously
	// when the connection layer reports a loss, never deferred to a tick.
	HandleDisconnect(playerID uuid.UUID)

	// State returns the status-tagged public snapshot broadcast to all
	// lobby members. It must never leak a player's pending secret choices.
	State() models.GameState

	// CheckRoundEnd returns nil while the round continues, and a result
	// exactly once when it ends.
	CheckRoundEnd() *models.RoundEndResult

	// Reset cancels internal timers and returns to a pre-round waiting
	// state so the instance can be reused for a rematch.
	Reset()
}
