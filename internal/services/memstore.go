package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

// ErrNotFound is returned when a key is not present in the store.
var ErrNotFound = errors.New("not found")

// MemoryStore keeps values in process memory, keyed by a generated id. Nothing survives a restart.
// Entries that have not been read for longer than the idle timeout are evicted by Run.
type MemoryStore[T any] struct {
	mu      sync.Mutex
	entries map[string]*memEntry[T]

	idle    time.Duration
	onEvict func(T)
	now     func() time.Time

	logger *slog.Logger
}

type memEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewMemoryStore creates a store. An idle timeout of zero disables eviction. onEvict, when not nil, is
// called for every evicted or removed value, outside the store lock.
func NewMemoryStore[T any](idle time.Duration, onEvict func(T), logger *slog.Logger) *MemoryStore[T] {
	return &MemoryStore[T]{
		entries: make(map[string]*memEntry[T]),
		idle:    idle,
		onEvict: onEvict,
		now:     time.Now,
		logger:  logger.With(slog.String("module", "memstore")),
	}
}

// Add stores value under a new id and returns the id.
func (m *MemoryStore[T]) Add(_ context.Context, value T) (string, error) {
	id := models.NewID()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &memEntry[T]{value: value, lastSeen: m.now()}
	return id, nil
}

// Get returns the value stored under id and refreshes its idle timer.
func (m *MemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	e.lastSeen = m.now()
	return e.value, nil
}

// Remove deletes the value stored under id. Removing a missing id is not an error.
func (m *MemoryStore[T]) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()

	if ok && m.onEvict != nil {
		m.onEvict(e.value)
	}
	return nil
}

// Len returns the number of stored values.
func (m *MemoryStore[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep evicts the values idle for longer than the idle timeout and returns how many were evicted.
func (m *MemoryStore[T]) Sweep() int {
	if m.idle <= 0 {
		return 0
	}

	m.mu.Lock()
	cutoff := m.now().Add(-m.idle)
	var evicted []T
	for id, e := range m.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.value)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	if m.onEvict != nil {
		for _, v := range evicted {
			m.onEvict(v)
		}
	}
	if len(evicted) > 0 {
		m.logger.Info("Evicted idle entries", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
