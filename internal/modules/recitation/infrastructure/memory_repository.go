package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/usecases"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// MemoryRepository is an in-memory implementation of GuildStateRepository.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[snowflake.ID]*domain.GuildState
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		states: make(map[snowflake.ID]*domain.GuildState),
	}
}

// Get returns the GuildState for the given guild, or nil if not exists.
func (r *MemoryRepository) Get(guildID snowflake.ID) *domain.GuildState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[guildID]
}

// Save stores the GuildState.
func (r *MemoryRepository) Save(state *domain.GuildState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.GuildID()] = state
}

// Delete removes the GuildState for the given guild.
func (r *MemoryRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, guildID)
}

// Count returns the number of guild states (for testing/monitoring).
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// ControllerRepository is an in-memory implementation of usecases.ControllerRepository.
type ControllerRepository struct {
	mu          sync.RWMutex
	controllers map[snowflake.ID]*usecases.PlaybackController
}

// NewControllerRepository creates a new ControllerRepository.
func NewControllerRepository() *ControllerRepository {
	return &ControllerRepository{
		controllers: make(map[snowflake.ID]*usecases.PlaybackController),
	}
}

// Get returns the controller of the given guild, or nil.
func (r *ControllerRepository) Get(guildID snowflake.ID) *usecases.PlaybackController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controllers[guildID]
}

// Save stores the controller of the given guild.
func (r *ControllerRepository) Save(guildID snowflake.ID, controller *usecases.PlaybackController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[guildID] = controller
}

// Delete removes the controller of the given guild.
func (r *ControllerRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, guildID)
}

// All returns every stored controller.
func (r *ControllerRepository) All() []*usecases.PlaybackController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.controllers)
}

// Count returns the number of controllers (for testing/monitoring).
func (r *ControllerRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Ensure the repositories implement their interfaces.
var (
	_ domain.GuildStateRepository   = (*MemoryRepository)(nil)
	_ usecases.ControllerRepository = (*ControllerRepository)(nil)
)
