// internal/game/registry.go
package game

import (
	"sort"

	"github.com/minigameshq/minigames/internal/lobby"
	"github.com/minigameshq/minigames/internal/models"
)

// Registry maps game-type ids to engine constructors. Selection happens by
// string id so new games plug in without touching the coordinator.
type Registry struct {
	builders map[string]func() Engine
}

// NewRegistry returns a registry with all built-in games registered.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]func() Engine)}
	r.Register(func() Engine { return NewReactionTime() })
	r.Register(func() Engine { return NewWouldYouRather() })
	r.Register(func() Engine { return NewSpaceDuel() })
	return r
}

// Register adds a game type, keyed by its config id.
func (r *Registry) Register(build func() Engine) {
	r.builders[build().Config().ID] = build
}

// ConfigFor returns the descriptor for a registered game type.
func (r *Registry) ConfigFor(id string) (models.MiniGameConfig, bool) {
	build, ok := r.builders[id]
	if !ok {
		return models.MiniGameConfig{}, false
	}
	return build().Config(), true
}

// Has reports whether a game type id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.builders[id]
	return ok
}

// Create builds and initializes an engine for the given players. Fails with
// lobby.ErrUnknownGameType before construction, so a partially-built
// instance can never escape.
func (r *Registry) Create(id string, players []*models.Player) (Engine, error) {
	build, ok := r.builders[id]
	if !ok {
		return nil, lobby.ErrUnknownGameType
	}
	eng := build()
	eng.Initialize(players)
	return eng, nil
}

// ListAvailable returns every registered game's config, sorted by id for a
// stable advertisement order.
func (r *Registry) ListAvailable() []models.MiniGameConfig {
	configs := make([]models.MiniGameConfig, 0, len(r.builders))
	for _, build := range r.builders {
		configs = append(configs, build().Config())
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}
