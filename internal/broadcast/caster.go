// internal/broadcast/caster.go
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/minigameshq/minigames/internal/models"
)

// Caster delivers serialized envelopes to sets of players. Delivery is
// best-effort, not transactional: a recipient whose connection is closed or
// failing is logged and skipped without aborting the rest of the fanout.
type Caster struct {
	log          *logrus.Logger
	writeTimeout time.Duration
}

// NewCaster returns a Caster using the given per-recipient write timeout.
func NewCaster(logger *logrus.Logger, writeTimeout time.Duration) *Caster {
	return &Caster{log: logger, writeTimeout: writeTimeout}
}

// SendToLobby serializes the envelope once and writes it to every recipient
// with an open connection, skipping any excluded player ids.
func (c *Caster) SendToLobby(players []*models.Player, msgType string, payload interface{}, exclude ...uuid.UUID) {
	data, err := json.Marshal(models.Envelope{Type: msgType, Payload: payload})
	if err != nil {
		c.log.WithError(err).WithField("type", msgType).Error("Failed to marshal broadcast")
		return
	}

	for _, p := range players {
		if p.Conn == nil || excluded(exclude, p.ID) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		err := p.Conn.Write(ctx, data)
		cancel()
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"player": p.ID,
				"type":   msgType,
			}).Warn("Failed to deliver broadcast")
		}
	}
}

// SendToPlayer writes a single envelope to one player, if connected.
func (c *Caster) SendToPlayer(p *models.Player, msgType string, payload interface{}) {
	if p == nil || p.Conn == nil {
		return
	}
	c.SendToLobby([]*models.Player{p}, msgType, payload)
}

func excluded(exclude []uuid.UUID, id uuid.UUID) bool {
	for _, ex := range exclude {
		if ex == id {
			return true
		}
	}
	return false
}
