package store

import (
	"encoding/json"
	"sort"
	"sync"
)

// State is the store's state object. A Store hands out the same *State to
// every subscriber until Destroy or a recovery replaces it.
type State struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// entry is one value with its lock attribute.
type entry struct {
	value  any
	locked bool
}

func newState() *State {
	return &State{entries: make(map[string]entry)}
}

// Get returns the value stored under key.
func (st *State) Get(key string) (any, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.entries[key]
	return e.value, ok
}

// Has reports whether key is present.
func (st *State) Has(key string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.entries[key]
	return ok
}

// Locked reports whether key is present and locked.
func (st *State) Locked(key string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.entries[key].locked
}

// Len returns the number of entries.
func (st *State) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// Keys returns all keys in sorted order.
func (st *State) Keys() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	keys := make([]string, 0, len(st.entries))
	for k := range st.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the values.
// The map is the caller's; values themselves are shared.
func (st *State) Snapshot() map[string]any {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]any, len(st.entries))
	for k, e := range st.entries {
		out[k] = e.value
	}
	return out
}

// MarshalJSON encodes the values as a JSON object. Lock attributes are not
// encoded.
func (st *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(st.Snapshot())
}

func (st *State) lookup(key string) (entry, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.entries[key]
	return e, ok
}

func (st *State) set(key string, value any, locked bool) {
	st.mu.Lock()
	st.entries[key] = entry{value: value, locked: locked}
	st.mu.Unlock()
}

func (st *State) delete(key string) {
	st.mu.Lock()
	delete(st.entries, key)
	st.mu.Unlock()
}

// decodeState parses a snapshot. Anything other than a JSON object is an
// error; the store treats it as "no snapshot".
func decodeState(snapshot string) (*State, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(snapshot), &values); err != nil {
		return nil, err
	}
	if values == nil {
		return nil, errNullSnapshot
	}
	st := &State{entries: make(map[string]entry, len(values))}
	for k, v := range values {
		st.entries[k] = entry{value: v}
	}
	return st, nil
}
