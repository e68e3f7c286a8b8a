package mirror

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-memory backend.
// It survives store instances within one process, which is what a
// session-scoped browser store gives a single tab. Use the SQL, Redis or S3
// backends to survive process restarts.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	closed  bool
	done    chan struct{}
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackendOption configures MemoryBackend behavior.
type MemoryBackendOption func(*memoryBackendConfig)

type memoryBackendConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired entries are swept.
// Default: 1 minute. Zero disables the sweep; expired entries are still
// never returned by Load.
func WithCleanupInterval(d time.Duration) MemoryBackendOption {
	return func(c *memoryBackendConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend(opts ...MemoryBackendOption) *MemoryBackend {
	cfg := &memoryBackendConfig{
		cleanupInterval: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	b := &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}

	if cfg.cleanupInterval > 0 {
		go b.cleanupLoop(cfg.cleanupInterval)
	}
	return b
}

// Save stores data with an expiration time.
func (m *MemoryBackend) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackendClosed{}
	}

	// Make a copy of data to prevent mutations
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.entries[key] = &memoryEntry{
		data:      dataCopy,
		expiresAt: expiresAt,
	}
	return nil
}

// Load retrieves data if it exists and hasn't expired.
func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrBackendClosed{}
	}

	e, ok := m.entries[key]
	if !ok || expired(e.expiresAt, time.Now()) {
		return nil, nil
	}

	// Return a copy to prevent mutations
	dataCopy := make([]byte, len(e.data))
	copy(dataCopy, e.data)
	return dataCopy, nil
}

// Delete removes a key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackendClosed{}
	}

	delete(m.entries, key)
	return nil
}

// Close shuts down the backend and releases resources.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.entries = nil
	return nil
}

// Count returns the number of stored entries, expired ones included until swept.
func (m *MemoryBackend) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cleanupLoop periodically removes expired entries.
func (m *MemoryBackend) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup removes all expired entries.
func (m *MemoryBackend) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	now := time.Now()
	for key, e := range m.entries {
		if expired(e.expiresAt, now) {
			delete(m.entries, key)
		}
	}
}
