// internal/models/lobby.go
package models

import "github.com/google/uuid"

// LobbyStatus tracks where a lobby is in its lifecycle.
type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "waiting"
	LobbyInGame   LobbyStatus = "in_game"
	LobbyFinished LobbyStatus = "finished"
)

// LobbyConfig holds the host-chosen settings for a lobby.
type LobbyConfig struct {
	PointsToWin int    `json:"pointsToWin"`
	GameMode    string `json:"gameMode"`
	MaxPlayers  int    `json:"maxPlayers"`
	IsPrivate   bool   `json:"isPrivate"`
}

// Lobby is an ephemeral, coded group of players agreeing on a game.
// Players are kept in join order; HostID always references a current member.
type Lobby struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	HostID  uuid.UUID   `json:"hostId"`
	Players []*Player   `json:"players"`
	Config  LobbyConfig `json:"config"`
	Status  LobbyStatus `json:"status"`
}

// Player returns the member with the given id, or nil.
func (l *Lobby) Player(id uuid.UUID) *Player {
	for _, p := range l.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Scores returns the playerID -> score map used in round and game results.
func (l *Lobby) Scores() map[string]int {
	scores := make(map[string]int, len(l.Players))
	for _, p := range l.Players {
		scores[p.ID.String()] = p.Score
	}
	return scores
}

// PublicLobby is the reduced listing entry advertised to players browsing
// open lobbies.
type PublicLobby struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	GameType    string `json:"gameType"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}
