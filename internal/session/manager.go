package session

import (
	"context"
	"sync"
)

// Manager holds the current session and replaces it on Restart. State is
// never carried across sessions; a new one rebuilds from the sources.
type Manager struct {
	mu      sync.RWMutex
	ctx     context.Context
	factory func() *Session
	current *Session
}

// NewManager creates and starts the first session.
func NewManager(ctx context.Context, factory func() *Session) *Manager {
	m := &Manager{ctx: ctx, factory: factory}
	m.current = factory()
	m.current.Start(ctx)
	return m
}

// Current returns the live session.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Restart tears the current session down and starts a fresh one.
func (m *Manager) Restart() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Close()
	m.current = m.factory()
	m.current.Start(m.ctx)
	return m.current
}

// Close tears down the current session.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.current.Close()
}
