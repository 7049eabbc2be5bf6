package player

import "sync"

// Factory builds a player for a session. onStop must be invoked exactly once
// when the player stops so the manager can drop its entry.
type Factory func(sessionID string, onStop func()) *Player

// Manager maps session ids to live players. At most one non-stopped player
// exists per session.
type Manager struct {
	mu      sync.Mutex
	players map[string]*Player
	factory Factory
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		players: make(map[string]*Player),
		factory: factory,
	}
}

// GetOrCreate returns the session's player, constructing one when none
// exists. Concurrent calls for a never-seen session yield the same instance.
func (m *Manager) GetOrCreate(sessionID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[sessionID]; ok && p.State() != StatusStopped {
		return p
	}
	var p *Player
	p = m.factory(sessionID, func() {
		m.remove(sessionID, p)
	})
	m.players[sessionID] = p
	return p
}

// Peek returns the session's player without creating one.
func (m *Manager) Peek(sessionID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[sessionID]
}

// remove drops the entry only when it still points at p, so a replacement
// created after a stop is never evicted by the old player's teardown.
func (m *Manager) remove(sessionID string, p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[sessionID] == p {
		delete(m.players, sessionID)
	}
}

// StopAll stops every live player, for process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		all = append(all, p)
	}
	m.mu.Unlock()
	for _, p := range all {
		p.Stop()
	}
}
