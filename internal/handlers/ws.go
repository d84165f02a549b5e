// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/minigameshq/minigames/internal/middleware"
	"github.com/minigameshq/minigames/internal/models"
)

// inbound is the wire shape of a client message: the envelope type plus the
// raw payload, decoded per command.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn adapts a *websocket.Conn to the models.Conn transport handle.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

// WSHandler upgrades the HTTP connection, assigns the client its identity,
// advertises the available games, and runs the read loop until the
// connection drops. Connection loss triggers the disconnect handler exactly
// once, on read loop exit.
func WSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		cl := &client{
			player: &models.Player{
				ID:   uuid.New(),
				Conn: &wsConn{c: c},
			},
		}

		s.Caster.SendToPlayer(cl.player, "available_games", s.Games.ListAvailable())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := s.readMessages(ctx, c, cl)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)

		// Single disconnect event: membership removal, host reassignment and
		// the engine notification all hang off this one call.
		s.leaveLobby(cl)
		cl.player.Conn = nil
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readMessages decodes envelopes off the socket and dispatches them until
// the connection closes or the context is cancelled. Handler errors never
// end the loop; they are reported to the sender as error events.
func (s *Server) readMessages(ctx context.Context, c *websocket.Conn, cl *client) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(cl, "Invalid JSON format.")
			continue
		}

		s.Log.WithFields(logrus.Fields{"player": cl.player.ID, "type": msg.Type}).Debug("Inbound message")

		if err := s.handleMessage(cl, msg.Type, msg.Payload); err != nil {
			s.Log.WithFields(logrus.Fields{
				"player": cl.player.ID,
				"type":   msg.Type,
				"error":  err,
			}).Warn("Message rejected")
			s.sendError(cl, err.Error())
		}
	}
}

// sendError reports a user-visible error back to the sender only.
func (s *Server) sendError(cl *client, message string) {
	s.Caster.SendToPlayer(cl.player, "error", map[string]string{"message": message})
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
