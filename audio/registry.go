package audio

import (
	"sync"
)

const (
	DefaultQueueLimit  = 30
	DefaultHistorySize = 20
)

// Registry maps guild ids to their playback state.
type Registry struct {
	sync.RWMutex
	states      map[string]*GuildState
	queueLimit  int
	historySize int
	metrics     *Metrics
}

func NewRegistry(queueLimit, historySize int, metrics *Metrics) *Registry {
	if queueLimit < 1 {
		queueLimit = DefaultQueueLimit
	}
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Registry{
		states:      make(map[string]*GuildState),
		queueLimit:  queueLimit,
		historySize: historySize,
		metrics:     metrics,
	}
}

// GetOrCreate returns the guild's state, creating a fresh one with defaults
// on first use.
func (r *Registry) GetOrCreate(guildID string) *GuildState {
	r.Lock()
	defer r.Unlock()

	if state, ok := r.states[guildID]; ok {
		return state
	}
	state := newGuildState(guildID, r.queueLimit, r.historySize)
	r.states[guildID] = state
	r.metrics.setActiveGuilds(len(r.states))
	return state
}

func (r *Registry) Lookup(guildID string) (*GuildState, bool) {
	r.RLock()
	defer r.RUnlock()
	state, ok := r.states[guildID]
	return state, ok
}

// Destroy forgets the guild. The next GetOrCreate starts clean.
func (r *Registry) Destroy(guildID string) {
	r.Lock()
	defer r.Unlock()
	delete(r.states, guildID)
	r.metrics.setActiveGuilds(len(r.states))
}

// Live reports whether state is still the registered instance for its guild.
func (r *Registry) Live(state *GuildState) bool {
	r.RLock()
	defer r.RUnlock()
	return r.states[state.GuildID] == state
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.states)
}
