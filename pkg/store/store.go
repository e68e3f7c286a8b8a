package store

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	kerrors "github.com/vango-dev/kodbox/internal/errors"
	"github.com/vango-dev/kodbox/pkg/mirror"
)

// defaultTracerName is the tracer used when WithTracer is not given.
const defaultTracerName = "kodbox"

// Store is an observable key/value store with an optional durable mirror.
// Pass one *Store to every component that shares its state.
type Store struct {
	// mu serializes operations. Mirror writes happen under mu so that
	// operations complete in issuance order; subscribers are notified
	// after mu is released.
	mu       sync.Mutex
	state    *State
	bindings map[string]any

	// firewall is armed by a recovery or TouchAsync(ctx, true) and consumed
	// by the broadcast that follows, which then writes the mirror once.
	firewall bool

	mirror  mirror.Mirror
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	subMu  sync.RWMutex
	subs   []*Subscription
	nextID uint64
}

// New creates an empty Store. A nil mirror disables persistence: persist
// requests become no-ops and Get never recovers.
func New(m mirror.Mirror, opts ...Option) *Store {
	s := &Store{
		state:    newState(),
		bindings: make(map[string]any),
		mirror:   m,
		logger:   slog.Default(),
		tracer:   otel.Tracer(defaultTracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "kodbox.store")
	return s
}

// State returns the current state object without attempting recovery.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Get returns the value stored under key.
//
// On a miss, Get reads the mirror. If the snapshot contains key, the whole
// in-memory state is replaced by the snapshot, subscribers are notified and
// the mirror is rewritten once. Otherwise Get reports absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	if v, ok := s.state.Get(key); ok {
		s.mu.Unlock()
		return v, true
	}

	ctx := context.Background()
	recovered, value, ok := s.recover(ctx, key)
	if !ok {
		s.mu.Unlock()
		return nil, false
	}

	s.logger.Info("state recovered from mirror", "key", key, "entries", recovered.Len())
	s.state = recovered
	s.firewall = true
	st, _ := s.commit(ctx, true)
	s.mu.Unlock()

	s.notify(st)
	return value, true
}

// Hydrate replaces the in-memory state with the mirrored snapshot and
// notifies subscribers, without writing the mirror back. It reports whether
// a snapshot was loaded; a missing or undecodable snapshot leaves the state
// unchanged. Bindings are kept.
func (s *Store) Hydrate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.mirror == nil {
		s.mu.Unlock()
		return false, nil
	}
	st, err := s.loadSnapshot(ctx)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("mirror read failed", "error", err, "code", "K023")
		return false, mirrorError("K023", err)
	}
	if st == nil {
		s.mu.Unlock()
		return false, nil
	}

	s.metrics.recovery("hydrate")
	s.logger.Debug("state hydrated from mirror", "entries", st.Len())
	s.state = st
	st, _ = s.commit(ctx, false)
	s.mu.Unlock()

	s.notify(st)
	return true, nil
}

// Set writes value under key and notifies subscribers.
//
// A plain write to a locked key is rejected with ErrLocked and leaves the
// state unchanged; subscribers are notified either way. With Persist() the
// state is written to the mirror before the broadcast. A persistence failure
// is returned but does not undo the in-memory write.
func (s *Store) Set(key string, value any, opts ...WriteOption) error {
	return s.set(context.Background(), "set", key, value, collectWriteOptions(opts))
}

// SetAsync is Set with a caller-supplied context for the mirror write.
// It returns once the write, if any, has completed and subscribers have been
// notified. With Persist() and Refresh() the slot is cleared before the
// new snapshot is written.
func (s *Store) SetAsync(ctx context.Context, key string, value any, opts ...WriteOption) error {
	return s.set(ctx, "set_async", key, value, collectWriteOptions(opts))
}

func (s *Store) set(ctx context.Context, op string, key string, value any, o writeOptions) error {
	s.mu.Lock()
	err := s.write(op, key, value, o)
	if err == nil && o.persist {
		var result *multierror.Error
		if o.refresh && op == "set_async" {
			if cerr := s.clearMirror(ctx); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if perr := s.persist(ctx, op); perr != nil {
			result = multierror.Append(result, perr)
		}
		err = flatten(result)
	}
	st, _ := s.commit(ctx, false)
	s.mu.Unlock()

	s.notify(st)
	return err
}

// write applies one entry write. Caller holds s.mu.
func (s *Store) write(op, key string, value any, o writeOptions) error {
	if e, ok := s.state.lookup(key); ok && e.locked && !o.locked && !o.destructive {
		return s.lockViolation(op, key)
	}
	s.state.set(key, value, o.locked)
	return nil
}

// Bind registers fn under name, replacing any previous binding.
func (s *Store) Bind(name string, fn any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("binding callable", "name", name)
	s.bindings[name] = fn
}

// Invoke returns the callable bound to name. An unbound name is logged and
// yields nil.
func (s *Store) Invoke(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.bindings[name]
	if !ok {
		s.metrics.notBound()
		s.logger.Error("callable not bound", "name", name,
			"error", kerrors.New("K001").WithDetail("name "+name).FormatCompact())
		return nil
	}
	return fn
}

// InvokeAsync returns the callable bound to name, or ErrNotBound.
func (s *Store) InvokeAsync(ctx context.Context, name string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.bindings[name]
	if !ok {
		s.metrics.notBound()
		return nil, kerrors.New("K001").
			WithDetail("no callable bound under " + strconv.Quote(name)).
			WithSuggestion("Call Bind before handing the name to other components")
	}
	return fn, nil
}

// Has reports whether key is stored or bound.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, bound := s.bindings[key]
	return bound || s.state.Has(key)
}

// IsBoundAndStored reports whether key is both stored and bound.
func (s *Store) IsBoundAndStored(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, bound := s.bindings[key]
	return bound && s.state.Has(key)
}

// Touch notifies subscribers without changing the state.
func (s *Store) Touch() {
	s.mu.Lock()
	st, _ := s.commit(context.Background(), false)
	s.mu.Unlock()
	s.notify(st)
}

// TouchAsync notifies subscribers without changing the state. With
// rewriteMirror, the state is also written to the mirror once, before the
// notification.
func (s *Store) TouchAsync(ctx context.Context, rewriteMirror bool) error {
	s.mu.Lock()
	if rewriteMirror {
		s.firewall = true
	}
	st, err := s.commit(ctx, rewriteMirror)
	s.mu.Unlock()

	s.notify(st)
	return err
}

// Remove deletes key and notifies subscribers.
//
// A locked entry is left intact and ErrLocked is returned unless
// Destructive() is given. Removing a missing key is a no-op. With Persist()
// the state is rewritten to the mirror after a successful removal.
func (s *Store) Remove(key string, opts ...WriteOption) error {
	o := collectWriteOptions(opts)
	ctx := context.Background()

	s.mu.Lock()
	var err error
	if e, ok := s.state.lookup(key); ok {
		if e.locked && !o.destructive {
			err = s.lockViolation("remove", key)
		} else {
			s.state.delete(key)
			if o.persist {
				err = s.persist(ctx, "remove")
			}
		}
	}
	st, _ := s.commit(ctx, false)
	s.mu.Unlock()

	s.notify(st)
	return err
}

// Destroy empties the state and the callable registry, clears the mirror
// slot and notifies subscribers with the empty state. The in-memory state
// is cleared even when the mirror fails.
func (s *Store) Destroy(ctx context.Context) error {
	s.mu.Lock()
	s.state = newState()
	s.bindings = make(map[string]any)
	err := s.clearMirror(ctx)
	st, _ := s.commit(ctx, false)
	s.mu.Unlock()

	s.notify(st)
	return err
}

// commit runs the pre-broadcast step: when beingSet is true and the
// firewall is armed, the firewall is cleared and the state is written to the
// mirror. Caller holds s.mu and notifies the returned state after unlocking.
func (s *Store) commit(ctx context.Context, beingSet bool) (*State, error) {
	var err error
	if beingSet && s.firewall {
		s.firewall = false
		err = s.persist(ctx, "echo")
	}
	s.metrics.broadcast()
	return s.state, err
}

// lockViolation reports a rejected write or removal of a locked key.
func (s *Store) lockViolation(op, key string) error {
	s.metrics.lockViolation(op)
	err := kerrors.New("K010").
		WithDetail("key " + strconv.Quote(key) + " is locked").
		WithSuggestion("Pass store.Destructive() to override the lock")
	s.logger.Warn("entry is locked", "op", op, "key", key, "error", err.FormatCompact())
	return err
}

// flatten returns nil, the only error, or the whole multierror.
func flatten(m *multierror.Error) error {
	if m == nil || len(m.Errors) == 0 {
		return nil
	}
	if len(m.Errors) == 1 {
		return m.Errors[0]
	}
	return m
}
