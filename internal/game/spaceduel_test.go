// internal/game/spaceduel_test.go
package game

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minigameshq/minigames/internal/models"
)

func submitTurn(moveX, moveY float64, shot *duelPoint) models.GameAction {
	payload := map[string]interface{}{
		"move": map[string]float64{"x": moveX, "y": moveY},
	}
	if shot != nil {
		payload["shot"] = map[string]float64{"x": shot.X, "y": shot.Y}
	}
	data, _ := json.Marshal(payload)
	return models.GameAction{Type: "submit_turn", Payload: data}
}

func TestDuelDuplicateSubmissionRejected(t *testing.T) {
	players := testPlayers("A", "B")
	g := NewSpaceDuel()
	g.Initialize(players)

	g.HandleAction(players[0].ID, submitTurn(200, 200, nil))
	g.HandleAction(players[0].ID, submitTurn(300, 300, nil))

	g.mu.Lock()
	ship := g.ships[players[0].ID]
	require.NotNil(t, ship.plan.Move)
	// The stored plan is still the first submission.
	assert.Equal(t, duelPoint{200, 200}, *ship.plan.Move)
	assert.True(t, ship.submitted)
	g.mu.Unlock()
}

func TestDuelTurnExecutesWhenAllSubmitted(t *testing.T) {
	players := testPlayers("A", "B")
	g := NewSpaceDuel()
	g.Initialize(players)

	g.HandleAction(players[0].ID, submitTurn(150, 150, nil))

	state := g.State()
	assert.Equal(t, "planning", state["status"])
	assert.Equal(t, 0, state["turn"])

	g.HandleAction(players[1].ID, submitTurn(350, 350, nil))

	g.mu.Lock()
	assert.Equal(t, "planning", g.phase)
	assert.Equal(t, 1, g.turn)
	assert.Equal(t, duelPoint{150, 150}, g.ships[players[0].ID].position)
	assert.Equal(t, duelPoint{350, 350}, g.ships[players[1].ID].position)
	for _, ship := range g.ships {
		assert.False(t, ship.submitted)
		assert.Nil(t, ship.plan.Move)
	}
	g.mu.Unlock()
}

func TestDuelShotHitsAndEndsRound(t *testing.T) {
	players := testPlayers("A", "B")
	g := NewSpaceDuel()
	g.Initialize(players)

	// Leave B one hit from elimination.
	g.mu.Lock()
	g.ships[players[1].ID].health = 1
	g.mu.Unlock()

	// A holds position and fires at B's destination; B moves there unarmed.
	g.HandleAction(players[0].ID, submitTurn(100, 100, &duelPoint{X: 300, Y: 300}))
	g.HandleAction(players[1].ID, submitTurn(300, 300, nil))

	g.mu.Lock()
	assert.Equal(t, "finished", g.phase)
	assert.Equal(t, 0, g.ships[players[1].ID].health)
	g.mu.Unlock()

	result := g.CheckRoundEnd()
	require.NotNil(t, result)
	assert.Equal(t, players[0].ID, result.WinnerID)
	assert.Nil(t, g.CheckRoundEnd())
}

func TestDuelShotMisses(t *testing.T) {
	// Firing away from the target must not damage it.
	origin := duelPoint{100, 100}
	target := duelPoint{0, 0}
	victim := duelPoint{400, 400}
	assert.False(t, shotHits(origin, target, victim))

	// A victim right on the line of fire is hit.
	assert.True(t, shotHits(duelPoint{0, 0}, duelPoint{500, 0}, duelPoint{250, 10}))

	// Beyond the range cap the shot falls short.
	assert.False(t, shotHits(duelPoint{0, 0}, duelPoint{5000, 0}, duelPoint{4000, 0}))
}

func TestDuelDisconnectEndsShortHandedGame(t *testing.T) {
	players := testPlayers("A", "B")
	g := NewSpaceDuel()
	g.Initialize(players)

	g.HandleDisconnect(players[1].ID)

	result := g.CheckRoundEnd()
	require.NotNil(t, result)
	assert.Equal(t, players[0].ID, result.WinnerID)
}

func TestDuelDisconnectReleasesStalledTurn(t *testing.T) {
	players := testPlayers("A", "B", "C")
	g := NewSpaceDuel()
	g.Initialize(players)

	g.HandleAction(players[0].ID, submitTurn(120, 120, nil))
	g.HandleAction(players[1].ID, submitTurn(380, 380, nil))

	// C never submits; its disconnect lets the turn execute.
	g.HandleDisconnect(players[2].ID)

	g.mu.Lock()
	assert.Equal(t, 1, g.turn)
	assert.Equal(t, "planning", g.phase)
	g.mu.Unlock()
}

func TestDuelStateHidesPendingPlans(t *testing.T) {
	players := testPlayers("A", "B")
	g := NewSpaceDuel()
	g.Initialize(players)

	g.HandleAction(players[0].ID, submitTurn(200, 200, &duelPoint{X: 1, Y: 1}))

	state := g.State()
	ships := state["ships"].(map[string]interface{})
	for id, raw := range ships {
		ship := raw.(map[string]interface{})
		assert.NotContains(t, ship, "plan", "ship %s leaks its plan", id)
		assert.Contains(t, ship, "submitted")
	}
	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.NotContains(t, fmt.Sprintf("%s", data), `"plan"`)
}
