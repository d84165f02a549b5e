// internal/session/coordinator.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/minigameshq/minigames/internal/broadcast"
	"github.com/minigameshq/minigames/internal/game"
	"github.com/minigameshq/minigames/internal/lobby"
	"github.com/minigameshq/minigames/internal/models"
)

// Coordinator owns the lobby-code -> active engine map. It routes inbound
// actions to engines, runs one fixed-interval tick loop per session to poll
// for round ends and broadcast state, and drives score progression through
// the lobby registry.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*session

	lobbies *lobby.Registry
	games   *game.Registry
	caster  *broadcast.Caster
	log     *logrus.Logger

	tickInterval time.Duration
	graceDelay   time.Duration
}

// session pairs an engine with the cancel handle of its tick loop. The
// cancel func is replaced every time a loop is (re)started, so removing a
// session always has exactly one loop to kill.
type session struct {
	engine game.Engine
	cancel context.CancelFunc
}

// NewCoordinator wires a coordinator against the given registries.
func NewCoordinator(logger *logrus.Logger, lobbies *lobby.Registry, games *game.Registry, caster *broadcast.Caster, tickInterval, graceDelay time.Duration) *Coordinator {
	return &Coordinator{
		sessions:     make(map[string]*session),
		lobbies:      lobbies,
		games:        games,
		caster:       caster,
		log:          logger,
		tickInterval: tickInterval,
		graceDelay:   graceDelay,
	}
}

// StartGame creates an engine for the lobby and starts its tick loop. If an
// instance already exists for the code it is reused rather than
// double-created, and no second loop is started.
func (c *Coordinator) StartGame(code, gameType string, players []*models.Player) (game.Engine, error) {
	c.mu.Lock()
	if s, exists := c.sessions[code]; exists {
		c.mu.Unlock()
		c.log.WithField("code", code).Warn("Game already active for lobby, reusing instance")
		return s.engine, nil
	}
	c.mu.Unlock()

	eng, err := c.games.Create(gameType, players)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if s, exists := c.sessions[code]; exists {
		// Lost the race; keep the instance that was stored first.
		c.mu.Unlock()
		return s.engine, nil
	}
	s := &session{engine: eng}
	c.sessions[code] = s
	c.startLoopLocked(code, s)
	c.mu.Unlock()

	c.lobbies.UpdateStatus(code, models.LobbyInGame)
	c.announceStart(code, eng)
	c.log.WithFields(logrus.Fields{"code": code, "game": gameType}).Info("Game started")
	return eng, nil
}

// NextRound tears the settled instance down and starts a fresh one for the
// same lobby. Returns ErrNotFound if no instance is active for the code.
func (c *Coordinator) NextRound(code string) error {
	c.mu.Lock()
	_, exists := c.sessions[code]
	c.mu.Unlock()
	if !exists {
		return lobby.ErrNotFound
	}
	c.ResetGame(code)

	l, err := c.lobbies.Get(code)
	if err != nil {
		return err
	}
	if _, err := c.StartGame(code, l.Config.GameMode, l.Players); err != nil {
		return err
	}
	c.log.WithField("code", code).Info("Next round started")
	return nil
}

// HandleAction forwards a player action to the lobby's engine. A stray
// action for a code with no active instance is a no-op, not an error.
func (c *Coordinator) HandleAction(code string, playerID uuid.UUID, action models.GameAction) {
	c.mu.Lock()
	s, exists := c.sessions[code]
	c.mu.Unlock()
	if !exists {
		return
	}

	s.engine.HandleAction(playerID, action)
	c.broadcastState(code, s.engine)
}

// HandlePlayerDisconnect forwards a connection loss to the live engine
// immediately. Disconnection is an asynchronous cancellation signal, not a
// turn boundary, so it is never deferred to the next tick.
func (c *Coordinator) HandlePlayerDisconnect(code string, playerID uuid.UUID) {
	c.mu.Lock()
	s, exists := c.sessions[code]
	c.mu.Unlock()
	if !exists {
		return
	}
	s.engine.HandleDisconnect(playerID)
}

// ResetGame resets and removes the instance, cancelling its tick loop, so
// the next start gets a clean session. Safe to call on any exit path.
func (c *Coordinator) ResetGame(code string) {
	c.mu.Lock()
	s, exists := c.sessions[code]
	if exists {
		delete(c.sessions, code)
		s.stopLoop()
	}
	c.mu.Unlock()
	if exists {
		s.engine.Reset()
		c.log.WithField("code", code).Debug("Game reset, session removed")
	}
}

// EndGame tears a session down: resets the engine, removes it from the map
// and cancels its tick loop unconditionally. Safe to call on every exit
// path; a dangling loop for a removed instance must never survive.
func (c *Coordinator) EndGame(code string) {
	c.mu.Lock()
	s, exists := c.sessions[code]
	if exists {
		delete(c.sessions, code)
		s.stopLoop()
	}
	c.mu.Unlock()
	if exists {
		s.engine.Reset()
		c.log.WithField("code", code).Info("Game ended, session removed")
	}
}

// Active reports whether a session exists for the code.
func (c *Coordinator) Active(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.sessions[code]
	return exists
}

// startLoopLocked launches the fixed-interval tick loop for a session.
// Assumes c.mu is held.
func (c *Coordinator) startLoopLocked(code string, s *session) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go c.runTicks(ctx, code, s.engine)
}

// stopLoop cancels the session's tick loop, if one is running.
func (s *session) stopLoop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// runTicks polls the engine every tick: a round-end result stops the loop
// and settles the round, otherwise the current state is broadcast.
func (c *Coordinator) runTicks(ctx context.Context, code string, eng game.Engine) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if result := eng.CheckRoundEnd(); result != nil {
				c.settleRound(code, result)
				return
			}
			c.broadcastState(code, eng)
		}
	}
}

// broadcastState pushes the engine's public snapshot to all lobby members.
// A missing lobby (torn down mid-tick) is tolerated silently.
func (c *Coordinator) broadcastState(code string, eng game.Engine) {
	l, err := c.lobbies.Get(code)
	if err != nil {
		return
	}
	c.caster.SendToLobby(l.Players, "game_state_update", eng.State())
}

// announceStart broadcasts game_started with the engine descriptor and the
// participating players.
func (c *Coordinator) announceStart(code string, eng game.Engine) {
	l, err := c.lobbies.Get(code)
	if err != nil {
		return
	}
	cfg := eng.Config()
	c.caster.SendToLobby(l.Players, "game_started", map[string]interface{}{
		"gameId":   cfg.ID,
		"gameName": cfg.Name,
		"players":  l.Players,
	})
}

// settleRound applies a round result: credit the winner, broadcast
// round_ended, and either finish the whole game (pointsToWin reached) or
// leave the instance in place awaiting an explicit next-round request.
func (c *Coordinator) settleRound(code string, result *models.RoundEndResult) {
	l, err := c.lobbies.Get(code)
	if err != nil {
		c.log.WithField("code", code).Debug("Round ended for vanished lobby, dropping result")
		return
	}

	winner := l.Player(result.WinnerID)
	if winner == nil {
		c.log.WithFields(logrus.Fields{"code": code, "winner": result.WinnerID}).
			Warn("Round winner no longer in lobby, skipping score update")
		return
	}

	winner.Score++
	if err := c.lobbies.UpdateScore(code, winner.ID, winner.Score); err != nil {
		return
	}

	c.caster.SendToLobby(l.Players, "round_ended", map[string]interface{}{
		"winnerId":   winner.ID,
		"winnerName": winner.Username,
		"stats":      result.Stats,
		"scores":     l.Scores(),
	})

	if winner.Score < l.Config.PointsToWin {
		return
	}

	// Game over: announce, tear the session down, and schedule the reset
	// back to waiting after the grace delay.
	c.lobbies.UpdateStatus(code, models.LobbyFinished)
	c.caster.SendToLobby(l.Players, "game_ended", map[string]interface{}{
		"winner":      winner,
		"finalScores": l.Scores(),
	})
	c.EndGame(code)
	c.log.WithFields(logrus.Fields{"code": code, "winner": winner.ID}).Info("Match won")

	time.AfterFunc(c.graceDelay, func() {
		if err := c.lobbies.ResetScores(code); err != nil {
			return // lobby emptied during the grace delay
		}
		c.lobbies.UpdateStatus(code, models.LobbyWaiting)
		if fresh, err := c.lobbies.Get(code); err == nil {
			c.caster.SendToLobby(fresh.Players, "lobby_updated", fresh)
		}
	})
}
