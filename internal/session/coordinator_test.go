// internal/session/coordinator_test.go
package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minigameshq/minigames/internal/broadcast"
	"github.com/minigameshq/minigames/internal/game"
	"github.com/minigameshq/minigames/internal/lobby"
	"github.com/minigameshq/minigames/internal/models"
)

// stubEngine is a scriptable engine: it reports the configured result once
// and records every lifecycle call.
type stubEngine struct {
	mu          sync.Mutex
	result      *models.RoundEndResult
	initCount   int
	resetCount  int
	actions     []models.GameAction
	disconnects []uuid.UUID
}

func (e *stubEngine) Config() models.MiniGameConfig {
	return models.MiniGameConfig{ID: "stub", Name: "Stub", MinPlayers: 2, MaxPlayers: 8}
}

func (e *stubEngine) Initialize(players []*models.Player) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initCount++
}

func (e *stubEngine) HandleAction(playerID uuid.UUID, action models.GameAction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, action)
}

func (e *stubEngine) HandleDisconnect(playerID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects = append(e.disconnects, playerID)
}

func (e *stubEngine) State() models.GameState {
	return models.GameState{"status": "stubbing"}
}

func (e *stubEngine) CheckRoundEnd() *models.RoundEndResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.result
	e.result = nil
	return r
}

func (e *stubEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetCount++
}

func (e *stubEngine) setResult(r *models.RoundEndResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = r
}

func (e *stubEngine) inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCount
}

func (e *stubEngine) resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetCount
}

// fakeConn records every envelope written to it.
type fakeConn struct {
	mu   sync.Mutex
	msgs []models.Envelope
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) count(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(msgType string) (models.Envelope, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].Type == msgType {
			return f.msgs[i], true
		}
	}
	return models.Envelope{}, false
}

type fixture struct {
	coord   *Coordinator
	lobbies *lobby.Registry
	stub    *stubEngine
	code    string
	host    *models.Player
	guest   *models.Player
	hostWS  *fakeConn
	guestWS *fakeConn
}

func newFixture(t *testing.T, pointsToWin int) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	stub := &stubEngine{}
	games := game.NewRegistry()
	games.Register(func() game.Engine { return stub })

	lobbies := lobby.NewRegistry(logger, games.Has)
	caster := broadcast.NewCaster(logger, time.Second)
	coord := NewCoordinator(logger, lobbies, games, caster, 5*time.Millisecond, 30*time.Millisecond)

	hostWS, guestWS := &fakeConn{}, &fakeConn{}
	host := &models.Player{ID: uuid.New(), Username: "host", Conn: hostWS}
	guest := &models.Player{ID: uuid.New(), Username: "guest", Conn: guestWS}

	l, err := lobbies.CreateLobby(host, "test", models.LobbyConfig{GameMode: "stub", PointsToWin: pointsToWin})
	require.NoError(t, err)
	_, err = lobbies.JoinLobby(l.Code, guest)
	require.NoError(t, err)

	t.Cleanup(func() { coord.EndGame(l.Code) })
	return &fixture{
		coord: coord, lobbies: lobbies, stub: stub, code: l.Code,
		host: host, guest: guest, hostWS: hostWS, guestWS: guestWS,
	}
}

func (fx *fixture) start(t *testing.T) {
	t.Helper()
	l, err := fx.lobbies.Get(fx.code)
	require.NoError(t, err)
	_, err = fx.coord.StartGame(fx.code, "stub", l.Players)
	require.NoError(t, err)
}

func TestStartGameIdempotent(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	l, _ := fx.lobbies.Get(fx.code)
	eng1, err := fx.coord.StartGame(fx.code, "stub", l.Players)
	require.NoError(t, err)
	eng2, err := fx.coord.StartGame(fx.code, "stub", l.Players)
	require.NoError(t, err)
	assert.Same(t, eng1, eng2)
	assert.Equal(t, 1, fx.stub.inits())
}

func TestStartGameUnknownType(t *testing.T) {
	fx := newFixture(t, 3)
	_, err := fx.coord.StartGame(fx.code, "no_such_game", nil)
	assert.ErrorIs(t, err, lobby.ErrUnknownGameType)
	assert.False(t, fx.coord.Active(fx.code))
}

func TestStartGameAnnouncesAndTicks(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	l, err := fx.lobbies.Get(fx.code)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyInGame, l.Status)

	assert.Equal(t, 1, fx.hostWS.count("game_started"))
	assert.Equal(t, 1, fx.guestWS.count("game_started"))

	assert.Eventually(t, func() bool {
		return fx.hostWS.count("game_state_update") >= 2 && fx.guestWS.count("game_state_update") >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestEndGameCancelsTickLoop(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	assert.Eventually(t, func() bool {
		return fx.hostWS.count("game_state_update") > 0
	}, time.Second, 5*time.Millisecond)

	fx.coord.EndGame(fx.code)
	assert.False(t, fx.coord.Active(fx.code))
	assert.Equal(t, 1, fx.stub.resets())

	// No further ticks may arrive once the loop is cancelled.
	time.Sleep(20 * time.Millisecond)
	settled := fx.hostWS.count("game_state_update")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, fx.hostWS.count("game_state_update"))
}

func TestHandleActionWithoutInstanceIsNoop(t *testing.T) {
	fx := newFixture(t, 3)
	// No game started; must not panic or broadcast.
	fx.coord.HandleAction(fx.code, fx.host.ID, models.GameAction{Type: "click"})
	assert.Zero(t, fx.hostWS.count("game_state_update"))
}

func TestHandleActionForwards(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	fx.coord.HandleAction(fx.code, fx.host.ID, models.GameAction{Type: "click"})
	fx.stub.mu.Lock()
	require.Len(t, fx.stub.actions, 1)
	assert.Equal(t, "click", fx.stub.actions[0].Type)
	fx.stub.mu.Unlock()
}

func TestDisconnectForwardedImmediately(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	fx.coord.HandlePlayerDisconnect(fx.code, fx.guest.ID)
	fx.stub.mu.Lock()
	assert.Equal(t, []uuid.UUID{fx.guest.ID}, fx.stub.disconnects)
	fx.stub.mu.Unlock()
}

func TestRoundEndScoresWinner(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	fx.stub.setResult(&models.RoundEndResult{
		WinnerID: fx.guest.ID,
		Stats:    map[string]interface{}{"fastestTime": 120},
	})

	assert.Eventually(t, func() bool {
		return fx.hostWS.count("round_ended") == 1
	}, time.Second, 5*time.Millisecond)

	env, ok := fx.hostWS.last("round_ended")
	require.True(t, ok)
	payload := env.Payload.(map[string]interface{})
	assert.Equal(t, fx.guest.ID.String(), payload["winnerId"])
	assert.Equal(t, "guest", payload["winnerName"])

	l, err := fx.lobbies.Get(fx.code)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Player(fx.guest.ID).Score)

	// Short of pointsToWin the instance stays, awaiting a next-round request.
	assert.True(t, fx.coord.Active(fx.code))
	assert.Zero(t, fx.hostWS.count("game_ended"))
}

func TestGameEndedOnceAndGraceReset(t *testing.T) {
	fx := newFixture(t, 1)
	fx.start(t)

	fx.stub.setResult(&models.RoundEndResult{WinnerID: fx.guest.ID, Stats: map[string]interface{}{}})

	assert.Eventually(t, func() bool {
		return fx.guestWS.count("game_ended") > 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, fx.guestWS.count("game_ended"))
	assert.Equal(t, 1, fx.hostWS.count("game_ended"))
	assert.False(t, fx.coord.Active(fx.code))

	// After the grace delay the lobby returns to waiting with zeroed scores.
	assert.Eventually(t, func() bool {
		l, err := fx.lobbies.Get(fx.code)
		return err == nil && l.Status == models.LobbyWaiting
	}, time.Second, 5*time.Millisecond)

	l, err := fx.lobbies.Get(fx.code)
	require.NoError(t, err)
	for _, p := range l.Players {
		assert.Zero(t, p.Score)
	}
	assert.GreaterOrEqual(t, fx.hostWS.count("lobby_updated"), 1)
	assert.Equal(t, 1, fx.guestWS.count("game_ended"))
}

func TestNextRoundReinitializes(t *testing.T) {
	fx := newFixture(t, 3)
	fx.start(t)

	fx.stub.setResult(&models.RoundEndResult{WinnerID: fx.host.ID, Stats: map[string]interface{}{}})
	assert.Eventually(t, func() bool {
		return fx.hostWS.count("round_ended") == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, fx.coord.NextRound(fx.code))
	assert.Equal(t, 1, fx.stub.resets())
	assert.Equal(t, 2, fx.stub.inits())
	assert.Equal(t, 2, fx.hostWS.count("game_started"))

	l, err := fx.lobbies.Get(fx.code)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyInGame, l.Status)
}

func TestNextRoundWithoutInstance(t *testing.T) {
	fx := newFixture(t, 3)
	assert.ErrorIs(t, fx.coord.NextRound(fx.code), lobby.ErrNotFound)
}
