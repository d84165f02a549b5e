// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/minigameshq/minigames/internal/broadcast"
	"github.com/minigameshq/minigames/internal/config"
	"github.com/minigameshq/minigames/internal/game"
	"github.com/minigameshq/minigames/internal/lobby"
	"github.com/minigameshq/minigames/internal/models"
	"github.com/minigameshq/minigames/internal/session"
)

// Boundary errors reported back to the requester. Registry errors
// (lobby.ErrNotFound etc.) pass through the same conversion.
var (
	errBadPayload     = errors.New("invalid payload")
	errNotInLobby     = errors.New("not in a lobby")
	errAlreadyInLobby = errors.New("already in a lobby")
)

// Server wires the registries, coordinator and broadcaster together and
// implements the message-level protocol. All per-lobby state lives in the
// registries; the Server itself is stateless beyond its dependencies.
type Server struct {
	Log      *logrus.Logger
	Lobbies  *lobby.Registry
	Games    *game.Registry
	Sessions *session.Coordinator
	Caster   *broadcast.Caster
}

// NewServer builds a fully wired server from config.
func NewServer(cfg config.Config, logger *logrus.Logger) *Server {
	games := game.NewRegistry()
	lobbies := lobby.NewRegistry(logger, games.Has)
	caster := broadcast.NewCaster(logger, cfg.WriteTimeout)
	sessions := session.NewCoordinator(logger, lobbies, games, caster, cfg.TickInterval, cfg.GraceDelay)
	return &Server{
		Log:      logger,
		Lobbies:  lobbies,
		Games:    games,
		Sessions: sessions,
		Caster:   caster,
	}
}

// client is one connected player's view: identity plus current lobby
// membership. It is only ever touched from its own connection's read loop,
// so it needs no locking.
type client struct {
	player    *models.Player
	lobbyCode string
}

// handleMessage routes one decoded envelope. Any returned error is
// converted into an error event for the sender; no error here may corrupt
// another lobby or crash the process.
func (s *Server) handleMessage(cl *client, msgType string, payload json.RawMessage) error {
	switch msgType {
	case "create_lobby":
		return s.createLobby(cl, payload)
	case "join_lobby":
		return s.joinLobby(cl, payload)
	case "leave_lobby":
		s.leaveLobby(cl)
		return nil
	case "start_game":
		return s.startGame(cl)
	case "game_action":
		return s.gameAction(cl, payload)
	case "request_next_round":
		return s.nextRound(cl)
	case "get_public_lobbies":
		s.Caster.SendToPlayer(cl.player, "public_lobbies", s.Lobbies.ListPublic())
		return nil
	case "toggle_lobby_privacy":
		return s.togglePrivacy(cl, payload)
	case "ping":
		s.Caster.SendToPlayer(cl.player, "pong", nil)
		return nil
	default:
		return fmt.Errorf("unknown message type: %s", msgType)
	}
}

type createLobbyPayload struct {
	Username    string `json:"username"`
	Color       string `json:"color"`
	Name        string `json:"name"`
	GameMode    string `json:"gameMode"`
	PointsToWin int    `json:"pointsToWin"`
	MaxPlayers  int    `json:"maxPlayers"`
	IsPrivate   *bool  `json:"isPrivate"`
}

func (s *Server) createLobby(cl *client, payload json.RawMessage) error {
	var req createLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Username == "" {
		return errBadPayload
	}
	if cl.lobbyCode != "" {
		return errAlreadyInLobby
	}

	cl.player.Username = req.Username
	cl.player.Color = req.Color

	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}
	l, err := s.Lobbies.CreateLobby(cl.player, req.Name, models.LobbyConfig{
		PointsToWin: req.PointsToWin,
		GameMode:    req.GameMode,
		MaxPlayers:  req.MaxPlayers,
		IsPrivate:   isPrivate,
	})
	if err != nil {
		return err
	}

	cl.lobbyCode = l.Code
	s.Caster.SendToPlayer(cl.player, "lobby_created", l)
	return nil
}

type joinLobbyPayload struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

func (s *Server) joinLobby(cl *client, payload json.RawMessage) error {
	var req joinLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Code == "" || req.Username == "" {
		return errBadPayload
	}
	if cl.lobbyCode != "" && cl.lobbyCode != req.Code {
		return errAlreadyInLobby
	}

	cl.player.Username = req.Username
	cl.player.Color = req.Color

	l, err := s.Lobbies.JoinLobby(req.Code, cl.player)
	if err != nil {
		return err
	}

	cl.lobbyCode = l.Code
	s.Caster.SendToPlayer(cl.player, "lobby_joined", l)
	s.Caster.SendToLobby(l.Players, "player_joined", l.Player(cl.player.ID), cl.player.ID)
	s.Caster.SendToLobby(l.Players, "lobby_updated", l, cl.player.ID)
	return nil
}

// leaveLobby removes the client from its lobby, whether by explicit request
// or connection loss. The event is dispatched to both the coordinator and
// the lobby registry as a single logical step: engines hear about the
// departure immediately, and membership plus host role update atomically.
func (s *Server) leaveLobby(cl *client) {
	code := cl.lobbyCode
	if code == "" {
		return
	}
	cl.lobbyCode = ""

	s.Sessions.HandlePlayerDisconnect(code, cl.player.ID)

	l, err := s.Lobbies.RemovePlayer(code, cl.player.ID)
	if err != nil {
		return // lobby already gone
	}
	if l == nil {
		// Last member out: the lobby was deleted, take the session with it.
		s.Sessions.EndGame(code)
		return
	}
	s.Caster.SendToLobby(l.Players, "player_left", cl.player.ID)
	s.Caster.SendToLobby(l.Players, "lobby_updated", l)
}

func (s *Server) startGame(cl *client) error {
	if cl.lobbyCode == "" {
		return errNotInLobby
	}
	l, err := s.Lobbies.Get(cl.lobbyCode)
	if err != nil {
		return err
	}
	if l.HostID != cl.player.ID {
		return lobby.ErrNotHost
	}

	cfg, ok := s.Games.ConfigFor(l.Config.GameMode)
	if !ok {
		return lobby.ErrUnknownGameType
	}
	if len(l.Players) < cfg.MinPlayers {
		return fmt.Errorf("need at least %d players", cfg.MinPlayers)
	}

	_, err = s.Sessions.StartGame(l.Code, l.Config.GameMode, l.Players)
	return err
}

func (s *Server) gameAction(cl *client, payload json.RawMessage) error {
	if cl.lobbyCode == "" {
		return nil // stray action, tolerated silently
	}
	var action models.GameAction
	if err := json.Unmarshal(payload, &action); err != nil || action.Type == "" {
		return errBadPayload
	}
	s.Sessions.HandleAction(cl.lobbyCode, cl.player.ID, action)
	return nil
}

func (s *Server) nextRound(cl *client) error {
	if cl.lobbyCode == "" {
		return errNotInLobby
	}
	l, err := s.Lobbies.Get(cl.lobbyCode)
	if err != nil {
		return err
	}
	if l.HostID != cl.player.ID {
		return lobby.ErrNotHost
	}
	return s.Sessions.NextRound(l.Code)
}

type privacyPayload struct {
	IsPrivate bool `json:"isPrivate"`
}

func (s *Server) togglePrivacy(cl *client, payload json.RawMessage) error {
	if cl.lobbyCode == "" {
		return errNotInLobby
	}
	var req privacyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return errBadPayload
	}
	l, err := s.Lobbies.SetPrivacy(cl.lobbyCode, cl.player.ID, req.IsPrivate)
	if err != nil {
		return err
	}
	s.Caster.SendToLobby(l.Players, "lobby_updated", l)
	return nil
}
