// internal/game/reaction.go
package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minigameshq/minigames/internal/models"
)

const (
	reactionMinDelay   = 2 * time.Second
	reactionDelayRange = 3 * time.Second
	reactionTimeout    = 3 * time.Second

	// penaltyResponse marks a click made before the screen turned green.
	penaltyResponse = -1
)

// ReactionTime is the "click when it turns green" game. Status walks
// waiting -> ready -> green -> ended; the green transition is armed on a
// randomized timer at Initialize.
type ReactionTime struct {
	mu         sync.Mutex
	players    []*models.Player
	status     string
	greenAt    time.Time
	responses  map[uuid.UUID]int64 // playerID -> response ms, or penaltyResponse
	greenTimer *time.Timer
}

// NewReactionTime returns an engine in the waiting state.
func NewReactionTime() *ReactionTime {
	return &ReactionTime{
		status:    "waiting",
		responses: make(map[uuid.UUID]int64),
	}
}

// Config implements Engine.
func (g *ReactionTime) Config() models.MiniGameConfig {
	return models.MiniGameConfig{
		ID:                "reaction_time",
		Name:              "Reaction Time",
		Description:       "Click as fast as you can when the screen turns green!",
		MinPlayers:        2,
		MaxPlayers:        8,
		EstimatedDuration: 10,
	}
}

// Initialize implements Engine. Schedules the green light after a random
// 2-5 second delay.
func (g *ReactionTime) Initialize(players []*models.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.players = players
	g.status = "ready"
	g.greenAt = time.Time{}
	g.responses = make(map[uuid.UUID]int64)

	delay := reactionMinDelay + time.Duration(rand.Int63n(int64(reactionDelayRange)))
	g.greenTimer = time.AfterFunc(delay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.status != "ready" {
			return
		}
		g.status = "green"
		g.greenAt = time.Now()
	})
}

// HandleAction implements Engine. A click before green records the penalty
// sentinel; a click at or after green records elapsed milliseconds. Each
// player's first response sticks.
func (g *ReactionTime) HandleAction(playerID uuid.UUID, action models.GameAction) {
	if action.Type != "click" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != "ready" && g.status != "green" {
		return
	}
	if _, responded := g.responses[playerID]; responded {
		return
	}
	if g.status != "green" {
		g.responses[playerID] = penaltyResponse
		return
	}
	g.responses[playerID] = time.Since(g.greenAt).Milliseconds()
}

// HandleDisconnect implements Engine. The departed player no longer counts
// toward the everyone-responded condition.
func (g *ReactionTime) HandleDisconnect(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.players = removePlayer(g.players, playerID)
	delete(g.responses, playerID)
}

// State implements Engine. Responses are public as soon as they are made;
// there are no pending secret choices in this game.
func (g *ReactionTime) State() models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	responses := make(map[string]int64, len(g.responses))
	for id, ms := range g.responses {
		responses[id.String()] = ms
	}
	return models.GameState{
		"status":           g.status,
		"responses":        responses,
		"playersRemaining": len(g.players) - len(g.responses),
	}
}

// CheckRoundEnd implements Engine. The round ends when every player has
// responded, or the timeout after green has passed, whichever comes first.
func (g *ReactionTime) CheckRoundEnd() *models.RoundEndResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == "ended" || len(g.players) == 0 {
		return nil
	}

	allResponded := len(g.responses) >= len(g.players)
	timedOut := g.status == "green" && time.Since(g.greenAt) > reactionTimeout
	if !allResponded && !timedOut {
		return nil
	}

	g.status = "ended"
	g.stopTimerLocked()
	return g.determineWinnerLocked()
}

// determineWinnerLocked picks the smallest strictly-positive response time.
// If everyone clicked early, the first player in join order wins by default.
// Assumes g.mu is held.
func (g *ReactionTime) determineWinnerLocked() *models.RoundEndResult {
	var fastestID uuid.UUID
	var fastest int64
	for _, p := range g.players {
		ms, ok := g.responses[p.ID]
		if !ok || ms <= 0 {
			continue
		}
		if fastestID == uuid.Nil || ms < fastest {
			fastestID = p.ID
			fastest = ms
		}
	}
	if fastestID == uuid.Nil {
		fastestID = g.players[0].ID
		fastest = 0
	}

	responses := make(map[string]int64, len(g.responses))
	for id, ms := range g.responses {
		responses[id.String()] = ms
	}
	return &models.RoundEndResult{
		WinnerID: fastestID,
		Stats: map[string]interface{}{
			"responses":   responses,
			"fastestTime": fastest,
		},
	}
}

// Reset implements Engine.
func (g *ReactionTime) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.status = "waiting"
	g.greenAt = time.Time{}
	g.responses = make(map[uuid.UUID]int64)
}

// stopTimerLocked cancels a pending green transition. Assumes g.mu is held.
func (g *ReactionTime) stopTimerLocked() {
	if g.greenTimer != nil {
		g.greenTimer.Stop()
		g.greenTimer = nil
	}
}

// removePlayer drops a player from a list, preserving order.
func removePlayer(players []*models.Player, id uuid.UUID) []*models.Player {
	kept := players[:0]
	for _, p := range players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return kept
}
