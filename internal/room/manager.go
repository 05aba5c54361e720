package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"conversation-feed-service/internal/events"
	"conversation-feed-service/internal/observability/logging"
	"conversation-feed-service/internal/observability/metrics"
)

// cleanupInterval is how often the idle sweep runs.
const cleanupInterval = 30 * time.Second

// ManagerConfig holds defaults applied to rooms the manager creates.
type ManagerConfig struct {
	AgentIdentity string
	Departed      Policy
	IdleTimeout   time.Duration
}

// Manager owns all active rooms, keyed by room name. Creation is
// idempotent and rooms idle past the timeout are swept in the background.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg       ManagerConfig
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a room manager and starts its idle sweep.
func NewManager(cfg ManagerConfig, publisher *events.Publisher) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("room-manager"),
		ctx:       ctx,
		cancel:    cancel,
		cleanup:   make(chan struct{}),
	}
	go m.startCleanupRoutine()
	return m
}

// GetOrCreate returns the room by name, creating it on first use. The
// local identity only takes effect at creation; later callers join the
// existing room as-is.
func (m *Manager) GetOrCreate(name, localIdentity string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[name]; ok {
		return r
	}
	r := New(Config{
		Name:          name,
		LocalIdentity: localIdentity,
		AgentIdentity: m.cfg.AgentIdentity,
		Departed:      m.cfg.Departed,
	}, m.publisher)
	m.rooms[name] = r
	m.metrics.RoomsActive.Inc()
	return r
}

// Get returns an existing room.
func (m *Manager) Get(name string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[name]
	return r, ok
}

// Remove closes and forgets a room. Removing an absent room is a no-op.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	r, ok := m.rooms[name]
	if ok {
		delete(m.rooms, name)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	r.Close()
	m.metrics.RoomsActive.Dec()
	return true
}

// Len returns the number of active rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// SetPolicy swaps the departed-source policy on every active room and for
// rooms created afterwards. Used by the config hot-reload watcher.
func (m *Manager) SetPolicy(p Policy) {
	m.mu.Lock()
	m.cfg.Departed = p
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.SetPolicy(p)
	}
}

// Stop closes every room and stops the idle sweep.
func (m *Manager) Stop() {
	m.logger.Info().Msg("Stopping room manager")

	m.cancel()
	<-m.cleanup

	m.mu.Lock()
	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Remove(name)
	}
	m.logger.Info().Msg("Room manager stopped")
}

func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	if m.cfg.IdleTimeout <= 0 {
		<-m.ctx.Done()
		return
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("idleTimeout", m.cfg.IdleTimeout).
		Dur("checkInterval", cleanupInterval).
		Msg("Room cleanup routine started")

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *Manager) cleanupExpired() {
	now := time.Now()

	m.mu.RLock()
	expired := make([]string, 0)
	for name, r := range m.rooms {
		if now.Sub(r.LastActivity()) > m.cfg.IdleTimeout {
			expired = append(expired, name)
		}
	}
	m.mu.RUnlock()

	for _, name := range expired {
		if m.Remove(name) {
			m.metrics.RoomsExpired.Inc()
			m.logger.Info().Str("room", name).Msg("Idle room removed")
		}
	}
}
