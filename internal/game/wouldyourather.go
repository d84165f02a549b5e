// internal/game/wouldyourather.go
package game

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minigameshq/minigames/internal/models"
)

const (
	votingSeconds      = 15
	resultsDisplayTime = 5 * time.Second
)

// wyrQuestion is one "would you rather" prompt.
type wyrQuestion struct {
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
}

var wyrQuestions = []wyrQuestion{
	{"Have super strength", "Have the ability to fly"},
	{"Be able to read minds", "Be able to become invisible"},
	{"Live without internet", "Live without AC/heating"},
	{"Always be 10 minutes late", "Always be 20 minutes early"},
	{"Have no taste buds", "Be color blind"},
	{"Have a photographic memory", "Have the ability to forget anything"},
	{"Be famous but hated", "Be unknown but loved"},
	{"Have perfect teeth", "Have perfect hair"},
	{"Be able to speak all languages", "Be able to play all instruments"},
	{"Have unlimited money", "Have unlimited time"},
	{"Live in a world without music", "Live in a world without colors"},
	{"Have the ability to time travel", "Have the ability to teleport"},
	{"Be able to talk to animals", "Be able to talk to plants"},
	{"Have no friends", "Have no family"},
	{"Be able to control fire", "Be able to control water"},
}

// wyrResults is the tally published once voting closes.
type wyrResults struct {
	OptionA int      `json:"optionA"`
	OptionB int      `json:"optionB"`
	Winners []string `json:"winners"`
}

// WouldYouRather is the voting game. Status walks
// waiting -> voting -> results -> ended. Votes stay mutable for the full
// countdown; the majority side wins, and a tie produces no winners.
type WouldYouRather struct {
	mu        sync.Mutex
	players   []*models.Player
	status    string
	question  *wyrQuestion
	votes     map[uuid.UUID]string // "A" or "B"
	countdown int
	results   *wyrResults

	countdownTimer *time.Timer
	resultsTimer   *time.Timer
}

// NewWouldYouRather returns an engine in the waiting state.
func NewWouldYouRather() *WouldYouRather {
	return &WouldYouRather{
		status: "waiting",
		votes:  make(map[uuid.UUID]string),
	}
}

// Config implements Engine.
func (g *WouldYouRather) Config() models.MiniGameConfig {
	return models.MiniGameConfig{
		ID:                "would_you_rather",
		Name:              "Would You Rather",
		Description:       "Choose between two options and see what others picked!",
		MinPlayers:        2,
		MaxPlayers:        8,
		EstimatedDuration: 30,
	}
}

// Initialize implements Engine. Picks a question uniformly at random and
// starts the one-decrement-per-second vote countdown.
func (g *WouldYouRather) Initialize(players []*models.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimersLocked()
	g.players = players
	g.question = &wyrQuestions[rand.Intn(len(wyrQuestions))]
	g.votes = make(map[uuid.UUID]string)
	g.status = "voting"
	g.countdown = votingSeconds
	g.results = nil
	g.scheduleTickLocked()
}

// scheduleTickLocked arms the next one-second countdown step.
// Assumes g.mu is held.
func (g *WouldYouRather) scheduleTickLocked() {
	g.countdownTimer = time.AfterFunc(time.Second, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.status != "voting" {
			return
		}
		g.countdown--
		if g.countdown <= 0 {
			g.endVotingLocked()
			return
		}
		g.scheduleTickLocked()
	})
}

// HandleAction implements Engine. Votes may be changed any number of times
// while voting is open; anything else is ignored.
func (g *WouldYouRather) HandleAction(playerID uuid.UUID, action models.GameAction) {
	if action.Type != "vote" {
		return
	}
	var choice string
	if err := json.Unmarshal(action.Payload, &choice); err != nil {
		return
	}
	if choice != "A" && choice != "B" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != "voting" {
		return
	}
	g.votes[playerID] = choice
}

// HandleDisconnect implements Engine. A departed player's vote is withdrawn
// if the voting window is still open.
func (g *WouldYouRather) HandleDisconnect(playerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.players = removePlayer(g.players, playerID)
	if g.status == "voting" {
		delete(g.votes, playerID)
	}
}

// endVotingLocked tallies the votes, publishes results and arms the
// fixed display delay before the round ends. Assumes g.mu is held.
func (g *WouldYouRather) endVotingLocked() {
	g.stopTimersLocked()
	g.status = "results"

	countA, countB := 0, 0
	for _, v := range g.votes {
		if v == "A" {
			countA++
		} else {
			countB++
		}
	}

	// Majority voters win; a tie leaves the winner set empty.
	winners := []string{}
	if countA != countB {
		majority := "A"
		if countB > countA {
			majority = "B"
		}
		for _, p := range g.players {
			if g.votes[p.ID] == majority {
				winners = append(winners, p.ID.String())
			}
		}
	}
	g.results = &wyrResults{OptionA: countA, OptionB: countB, Winners: winners}

	g.resultsTimer = time.AfterFunc(resultsDisplayTime, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.status == "results" {
			g.status = "ended"
		}
	})
}

// State implements Engine. Individual votes stay hidden while voting is
// open; only the count of players who have voted is public until results.
func (g *WouldYouRather) State() models.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := models.GameState{
		"status":        g.status,
		"question":      g.question,
		"voteCountdown": g.countdown,
		"totalPlayers":  len(g.players),
		"votedPlayers":  len(g.votes),
	}
	if g.results != nil {
		state["results"] = g.results
		votes := make(map[string]string, len(g.votes))
		for id, v := range g.votes {
			votes[id.String()] = v
		}
		state["votes"] = votes
	}
	return state
}

// CheckRoundEnd implements Engine. Reports a winner chosen uniformly at
// random among the majority voters (first player if the set is empty), only
// once the results display delay has elapsed.
func (g *WouldYouRather) CheckRoundEnd() *models.RoundEndResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != "ended" || len(g.players) == 0 {
		return nil
	}

	winnerID := g.players[0].ID
	if g.results != nil && len(g.results.Winners) > 0 {
		pick := g.results.Winners[rand.Intn(len(g.results.Winners))]
		if id, err := uuid.Parse(pick); err == nil {
			winnerID = id
		}
	}

	g.status = "waiting"
	return &models.RoundEndResult{
		WinnerID: winnerID,
		Stats: map[string]interface{}{
			"question":   g.question,
			"results":    g.results,
			"totalVotes": len(g.votes),
		},
	}
}

// Reset implements Engine.
func (g *WouldYouRather) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimersLocked()
	g.status = "waiting"
	g.question = nil
	g.votes = make(map[uuid.UUID]string)
	g.countdown = 0
	g.results = nil
}

// stopTimersLocked cancels the countdown and results timers.
// Assumes g.mu is held.
func (g *WouldYouRather) stopTimersLocked() {
	if g.countdownTimer != nil {
		g.countdownTimer.Stop()
		g.countdownTimer = nil
	}
	if g.resultsTimer != nil {
		g.resultsTimer.Stop()
		g.resultsTimer = nil
	}
}
