package circuitbreaker

import (
	"sort"
	"sync"

	"api-gateway/internal/common/logging"
)

// Manager hands out named breakers so every caller of one dependency shares
// the same state.
type Manager struct {
	breakers map[string]*Breaker
	logger   logging.Logger
	mu       sync.Mutex
}

func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetOrCreate returns the breaker called name, creating it with config on
// first use.
func (m *Manager) GetOrCreate(name string, config Config) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}
	breaker := New(name, config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// Register adds a breaker created elsewhere so it shows up in AllStats. A
// breaker already registered under the same name is kept.
func (m *Manager) Register(breaker *Breaker) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.breakers[breaker.Name()]; exists {
		return existing
	}
	m.breakers[breaker.Name()] = breaker
	return breaker
}

// AllStats returns a snapshot of every breaker sorted by name.
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
