// Package store provides an observable key/value store for sharing mutable
// state and bound callables between otherwise decoupled components.
//
// A Store owns three things: the state object (string keys to arbitrary
// values, each entry optionally locked), a registry of bound callables, and
// a broadcast that delivers the state object to every subscriber after each
// mutation. A Store may be backed by a durable mirror holding a serialized
// snapshot of the whole state object, used to recover after a reload.
//
// Usage:
//
//	backend := mirror.NewMemoryBackend()
//	s := store.New(mirror.NewSlot(backend, mirror.WithSession(id)))
//
//	sub := s.Subscribe(func(st *store.State) {
//	    user, _ := st.Get("user")
//	    render(user)
//	})
//	defer sub.Unsubscribe()
//
//	s.Set("user", u, store.Locked(), store.Persist())
//	s.Bind("logout", func() { ... })
//
// # Recovery
//
// Get first looks at memory. On a miss it reads the mirror; when the
// snapshot holds the key, the whole in-memory state object is replaced by
// the snapshot, and the broadcast that follows writes the state back to the
// mirror exactly once. Keys present in memory but absent from the snapshot
// are discarded by that replacement.
//
// # Locked entries
//
// An entry written with Locked() rejects plain writes and removals with
// ErrLocked. Destructive() overrides the lock. Locks are not part of the
// snapshot, so recovered entries are writable.
//
// # Broadcast
//
// Subscribers receive the live *State, not a copy. Its read methods are safe
// for concurrent use, but its contents change with every mutation; use
// State.Snapshot for a stable copy. Subscribers are notified after the store
// releases its lock, so a callback may call back into the Store.
package store
