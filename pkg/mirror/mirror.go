package mirror

import (
	"context"
	"time"
)

// DefaultSlotName is the key a Slot uses when no name is configured.
const DefaultSlotName = "StorageBox"

// Mirror is a single durable slot holding one serialized state snapshot.
type Mirror interface {
	// Load returns the stored snapshot. ok is false when the slot is empty
	// or expired; err is reserved for backend failures.
	Load(ctx context.Context) (snapshot string, ok bool, err error)

	// Store overwrites the slot with snapshot.
	Store(ctx context.Context, snapshot string) error

	// Clear removes the snapshot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Backend is a multi-key durable medium.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save persists data under key. A zero expiresAt never expires.
	// If key already exists, it is overwritten.
	Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error

	// Load retrieves data by key.
	// Returns (nil, nil) if the key doesn't exist or has expired.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Should not return an error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ErrBackendClosed is returned when operations are attempted on a closed backend.
type ErrBackendClosed struct{}

func (e ErrBackendClosed) Error() string {
	return "mirror backend is closed"
}

// Slot binds one key of a Backend to the Mirror contract.
type Slot struct {
	backend Backend
	key     string
	ttl     time.Duration
}

// SlotOption configures a Slot.
type SlotOption func(*slotConfig)

type slotConfig struct {
	name    string
	session string
	ttl     time.Duration
}

// WithSlotName sets the slot name.
// Default: "StorageBox".
func WithSlotName(name string) SlotOption {
	return func(c *slotConfig) {
		c.name = name
	}
}

// WithSession scopes the slot to a session ID.
// Slots of different sessions never see each other's snapshots.
func WithSession(id string) SlotOption {
	return func(c *slotConfig) {
		c.session = id
	}
}

// WithTTL makes every stored snapshot expire ttl after its write.
// Default: 0 (never expires).
func WithTTL(ttl time.Duration) SlotOption {
	return func(c *slotConfig) {
		c.ttl = ttl
	}
}

// NewSlot creates a Mirror over backend.
func NewSlot(backend Backend, opts ...SlotOption) *Slot {
	cfg := &slotConfig{
		name: DefaultSlotName,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = DefaultSlotName
	}

	key := cfg.name
	if cfg.session != "" {
		key = cfg.session + ":" + cfg.name
	}

	return &Slot{
		backend: backend,
		key:     key,
		ttl:     cfg.ttl,
	}
}

// Key returns the backend key the slot reads and writes.
func (s *Slot) Key() string {
	return s.key
}

// Load implements Mirror.
func (s *Slot) Load(ctx context.Context) (string, bool, error) {
	data, err := s.backend.Load(ctx, s.key)
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

// Store implements Mirror.
func (s *Slot) Store(ctx context.Context, snapshot string) error {
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}
	return s.backend.Save(ctx, s.key, []byte(snapshot), expiresAt)
}

// Clear implements Mirror.
func (s *Slot) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, s.key)
}

// expired reports whether expiresAt is set and in the past.
func expired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
