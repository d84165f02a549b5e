// internal/lobby/registry.go
package lobby

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/minigameshq/minigames/internal/models"
)

// Errors surfaced by registry operations. Handlers match them with
// errors.Is and convert them into user-visible error events.
var (
	ErrNotFound        = errors.New("lobby not found")
	ErrLobbyFull       = errors.New("lobby is full")
	ErrGameInProgress  = errors.New("game already in progress")
	ErrNotHost         = errors.New("only the host can do that")
	ErrUnknownGameType = errors.New("unknown game type")
)

const (
	codeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultPointsToWin = 3
	DefaultMaxPlayers  = 8
)

// Registry manages all active lobbies in memory, keyed by generated code.
// It is independent of game logic; the game-type check on creation is
// injected so the registry never imports the game package.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*models.Lobby

	isGameType func(id string) bool
	log        *logrus.Logger
}

// NewRegistry returns an empty registry. isGameType reports whether a game
// mode id is registered; a nil func accepts everything.
func NewRegistry(logger *logrus.Logger, isGameType func(id string) bool) *Registry {
	if isGameType == nil {
		isGameType = func(string) bool { return true }
	}
	return &Registry{
		lobbies:    make(map[string]*models.Lobby),
		isGameType: isGameType,
		log:        logger,
	}
}

// CreateLobby builds a lobby hosted by the given player and stores it under
// a freshly generated code. Fails with ErrUnknownGameType before anything is
// stored if the requested game mode is not registered.
func (r *Registry) CreateLobby(host *models.Player, name string, cfg models.LobbyConfig) (*models.Lobby, error) {
	if cfg.GameMode == "" {
		cfg.GameMode = "reaction_time"
	}
	if !r.isGameType(cfg.GameMode) {
		return nil, ErrUnknownGameType
	}
	if cfg.PointsToWin <= 0 {
		cfg.PointsToWin = DefaultPointsToWin
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hostCopy := *host
	hostCopy.Score = 0
	hostCopy.IsHost = true

	l := &models.Lobby{
		Code:    r.generateCodeLocked(),
		Name:    name,
		HostID:  host.ID,
		Players: []*models.Player{&hostCopy},
		Config:  cfg,
		Status:  models.LobbyWaiting,
	}
	r.lobbies[l.Code] = l

	r.log.WithFields(logrus.Fields{"code": l.Code, "host": host.ID}).Info("Lobby created")
	return snapshotLocked(l), nil
}

// generateCodeLocked draws random codes until one is unused among the
// currently active lobbies. Assumes r.mu is held.
func (r *Registry) generateCodeLocked() string {
	buf := make([]byte, codeLength)
	for {
		for i := range buf {
			buf[i] = codeCharset[rand.Intn(len(codeCharset))]
		}
		code := string(buf)
		if _, taken := r.lobbies[code]; !taken {
			return code
		}
	}
}

// JoinLobby adds a player to a waiting lobby. Joining a lobby the player is
// already a member of returns the lobby unchanged.
func (r *Registry) JoinLobby(code string, player *models.Player) (*models.Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[code]
	if !ok {
		return nil, ErrNotFound
	}
	if l.Player(player.ID) != nil {
		return snapshotLocked(l), nil
	}
	if l.Status != models.LobbyWaiting {
		return nil, ErrGameInProgress
	}
	if len(l.Players) >= l.Config.MaxPlayers {
		return nil, ErrLobbyFull
	}

	joined := *player
	joined.Score = 0
	joined.IsHost = false
	l.Players = append(l.Players, &joined)

	r.log.WithFields(logrus.Fields{"code": code, "player": player.ID}).Info("Player joined lobby")
	return snapshotLocked(l), nil
}

// RemovePlayer drops a player from a lobby. Returns (nil, nil) if the lobby
// became empty and was deleted; removal from an unknown code is reported as
// ErrNotFound and is safe to ignore. If the host left and members remain,
// the earliest remaining joiner inherits the host role.
func (r *Registry) RemovePlayer(code string, playerID uuid.UUID) (*models.Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[code]
	if !ok {
		return nil, ErrNotFound
	}

	kept := l.Players[:0]
	for _, p := range l.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	l.Players = kept

	if len(l.Players) == 0 {
		delete(r.lobbies, code)
		r.log.WithField("code", code).Info("Lobby emptied, deleting")
		return nil, nil
	}

	if l.HostID == playerID {
		l.HostID = l.Players[0].ID
		l.Players[0].IsHost = true
		r.log.WithFields(logrus.Fields{"code": code, "host": l.HostID}).Info("Host reassigned")
	}
	return snapshotLocked(l), nil
}

// Get returns a snapshot of a lobby by code.
func (r *Registry) Get(code string) (*models.Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshotLocked(l), nil
}

// UpdateStatus moves a lobby between waiting, in_game and finished.
func (r *Registry) UpdateStatus(code string, status models.LobbyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	return nil
}

// UpdateScore sets a player's score within a lobby.
func (r *Registry) UpdateScore(code string, playerID uuid.UUID, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return ErrNotFound
	}
	if p := l.Player(playerID); p != nil {
		p.Score = score
	}
	return nil
}

// ResetScores zeroes every member's score, typically before a rematch.
func (r *Registry) ResetScores(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return ErrNotFound
	}
	for _, p := range l.Players {
		p.Score = 0
	}
	return nil
}

// SetPrivacy toggles whether the lobby appears in public listings.
// Host-only.
func (r *Registry) SetPrivacy(code string, playerID uuid.UUID, isPrivate bool) (*models.Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return nil, ErrNotFound
	}
	if l.HostID != playerID {
		return nil, ErrNotHost
	}
	l.Config.IsPrivate = isPrivate
	return snapshotLocked(l), nil
}

// ListPublic returns listing entries for every non-private lobby.
func (r *Registry) ListPublic() []models.PublicLobby {
	r.mu.Lock()
	defer r.mu.Unlock()

	listings := []models.PublicLobby{}
	for _, l := range r.lobbies {
		if l.Config.IsPrivate {
			continue
		}
		listings = append(listings, models.PublicLobby{
			Code:        l.Code,
			Name:        l.Name,
			GameType:    l.Config.GameMode,
			PlayerCount: len(l.Players),
			MaxPlayers:  l.Config.MaxPlayers,
		})
	}
	return listings
}

// snapshotLocked deep-copies a lobby so callers can serialize or iterate it
// without racing subsequent mutations. Assumes r.mu is held.
func snapshotLocked(l *models.Lobby) *models.Lobby {
	cp := *l
	cp.Players = make([]*models.Player, len(l.Players))
	for i, p := range l.Players {
		pc := *p
		cp.Players[i] = &pc
	}
	return &cp
}
