// internal/game/spaceduel.go
package game

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/minigameshq/minigames/internal/models"
)

const (
	duelStartHealth = 3

	// Shot geometry: a shot travels from the shooter's post-move position
	// toward its target point, capped at shotRange units. An opponent
	// within shotHitRadius of that segment takes one damage.
	shotRange     = 600.0
	shotHitRadius = 30.0
)

// duelSpawns are the fixed starting positions, assigned in join order.
var duelSpawns = []duelPoint{
	{100, 100},
	{400, 400},
	{400, 100},
	{100, 400},
}

type duelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// duelPlan is a player's submitted move + shot pair for one planning phase.
type duelPlan struct {
	Move *duelPoint `json:"move"`
	Shot *duelPoint `json:"shot"`
}

// duelShip is one player's mutable state.
type duelShip struct {
	id        uuid.UUID
	name      string
	health    int
	position  duelPoint
	plan      duelPlan
	submitted bool
}

// SpaceDuel is the simultaneous turn-based duel. Phase walks
// planning -> executing -> finished; each player submits at most one plan
// per planning phase and all plans resolve at once.
type SpaceDuel struct {
	mu      sync.Mutex
	players []*models.Player
	ships   map[uuid.UUID]*duelShip
	phase   string
	turn    int
}

// NewSpaceDuel returns an engine in the waiting state.
func NewSpaceDuel() *SpaceDuel {
	return &SpaceDuel{
		phase: "waiting",
		ships: make(map[uuid.UUID]*duelShip),
	}
}

// Config implements Engine.
func (g *SpaceDuel) Config() models.MiniGameConfig {
	return models.MiniGameConfig{
		ID:                "space_duel",
		Name:              "Space Duel",
		Description:       "Plan your move and shot, then watch the turn play out!",
		MinPlayers:        2,
		MaxPlayers:        4,
		EstimatedDuration: 120,
	}
}

// Initialize implements Engine.
func (g *SpaceDuel) Initialize(players []*models.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.players = players
	g.ships = make(map[uuid.UUID]*duelShip, len(players))
	for i, p := range players {
		g.ships[p.ID] = &duelShip{
			id:       p.ID,
			name:     p.Username,
			health:   duelStartHealth,
			position: duelSpawns[i%len(duelSpawns)],
		}
	}
	g.phase = "planning"
	g.turn = 0
}

// HandleAction implements Engine. Accepts one submit_turn per player per
// planning phase; a second submission leaves the stored plan untouched.
func (g *SpaceDuel) HandleAction(playerID uuid.UUID, action models.GameAction) {
	if action.Type != "submit_turn" {
		return
	}
	var plan duelPlan
	if err := json.Unmarshal(action.Payload, &plan); err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != "planning" {
		return
	}
	ship, ok := g.ships[playerID]
	if !ok || ship.submitted {
		return
	}

	ship.plan = plan
	ship.submitted = true

	if g.allSubmittedLocked() {
		g.executeTurnLocked()
	}
}

// HandleDisconnect implements Engine. The disconnected ship is removed; if
// everyone remaining has already submitted, the turn executes immediately
// rather than stalling on the departed player.
func (g *SpaceDuel) HandleDisconnect(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.players = removePlayer(g.players, playerID)
	delete(g.ships, playerID)

	if g.phase == "finished" {
		return
	}
	if len(g.players) <= 1 {
		g.phase = "finished"
		return
	}
	if g.phase == "planning" && g.allSubmittedLocked() {
		g.executeTurnLocked()
	}
}

// allSubmittedLocked reports whether every remaining player has a plan in.
// Assumes g.mu is held.
func (g *SpaceDuel) allSubmittedLocked() bool {
	for _, p := range g.players {
		if ship, ok := g.ships[p.ID]; !ok || !ship.submitted {
			return false
		}
	}
	return len(g.players) > 0
}

// executeTurnLocked resolves all plans at once: moves apply first, then
// every shot is traced against the post-move positions. Plans are cleared
// and the phase returns to planning unless the duel ended.
// Assumes g.mu is held.
func (g *SpaceDuel) executeTurnLocked() {
	g.phase = "executing"

	for _, ship := range g.ships {
		if ship.plan.Move != nil {
			ship.position = *ship.plan.Move
		}
	}

	for _, shooter := range g.ships {
		if shooter.plan.Shot == nil || shooter.health <= 0 {
			continue
		}
		for _, target := range g.ships {
			if target.id == shooter.id || target.health <= 0 {
				continue
			}
			if shotHits(shooter.position, *shooter.plan.Shot, target.position) {
				target.health--
			}
		}
	}

	for _, ship := range g.ships {
		ship.plan = duelPlan{}
		ship.submitted = false
	}

	alive := 0
	for _, ship := range g.ships {
		if ship.health > 0 {
			alive++
		}
	}
	if alive <= 1 {
		g.phase = "finished"
		return
	}

	g.turn++
	g.phase = "planning"
}

// shotHits traces a shot fired from origin toward target and reports
// whether the victim's position lies within the hit radius of the resulting
// segment, whose length is capped at shotRange.
func shotHits(origin, target, victim duelPoint) bool {
	dx, dy := target.X-origin.X, target.Y-origin.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(victim.X-origin.X, victim.Y-origin.Y) <= shotHitRadius
	}
	span := math.Min(length, shotRange)
	dx, dy = dx/length*span, dy/length*span

	// Project the victim onto the segment, clamped to its endpoints.
	t := ((victim.X-origin.X)*dx + (victim.Y-origin.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	cx, cy := origin.X+t*dx, origin.Y+t*dy
	return math.Hypot(victim.X-cx, victim.Y-cy) <= shotHitRadius
}

// State implements Engine. Pending plans are secret during planning; only
// the submitted flags, positions and health are public.
func (g *SpaceDuel) State() models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	ships := make(map[string]interface{}, len(g.ships))
	for id, ship := range g.ships {
		ships[id.String()] = map[string]interface{}{
			"name":      ship.name,
			"health":    ship.health,
			"position":  ship.position,
			"submitted": ship.submitted,
		}
	}
	return models.GameState{
		"status": g.phase,
		"turn":   g.turn,
		"ships":  ships,
	}
}

// CheckRoundEnd implements Engine. The duel ends when at most one ship has
// positive health; no survivors means no winner.
func (g *SpaceDuel) CheckRoundEnd() *models.RoundEndResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != "finished" {
		return nil
	}
	g.phase = "waiting"

	var winnerID uuid.UUID
	for _, p := range g.players {
		if ship, ok := g.ships[p.ID]; ok && ship.health > 0 {
			winnerID = p.ID
			break
		}
	}

	healths := make(map[string]int, len(g.ships))
	for id, ship := range g.ships {
		healths[id.String()] = ship.health
	}
	return &models.RoundEndResult{
		WinnerID: winnerID,
		Stats: map[string]interface{}{
			"turns":   g.turn,
			"healths": healths,
		},
	}
}

// Reset implements Engine. The duel has no internal timers to cancel.
func (g *SpaceDuel) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.phase = "waiting"
	g.turn = 0
	g.ships = make(map[uuid.UUID]*duelShip)
}
