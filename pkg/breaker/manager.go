package breaker

import (
	"context"
	"sync"
)

// Manager owns one breaker per provider name, created lazily on first use
// and kept for the life of the process.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewManager builds a manager whose breakers share cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for a provider, creating it on first access.
// Double-checked under the write lock so concurrent first access yields a
// single instance.
func (m *Manager) Get(provider string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[provider]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[provider]; ok {
		return cb
	}
	cb = New(provider, m.cfg)
	m.breakers[provider] = cb
	return cb
}

// Call routes fn through the provider's breaker.
func (m *Manager) Call(ctx context.Context, provider string, fn func(context.Context) error) error {
	return m.Get(provider).Call(ctx, fn)
}

// Snapshot reports the stats of every known breaker, for diagnostics.
func (m *Manager) Snapshot() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.breakers))
	for name, cb := range m.breakers {
		out[name] = cb.Stats()
	}
	return out
}
