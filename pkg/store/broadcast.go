package store

import (
	"context"
	"sync"
)

// Subscription is a registered broadcast receiver.
type Subscription struct {
	id    uint64
	fn    func(*State)
	store *Store
	once  sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub)
	})
}

// Subscribe registers fn and calls it immediately with the current state,
// then again after every mutation. Delivery order between subscribers is
// not guaranteed.
func (s *Store) Subscribe(fn func(*State)) *Subscription {
	sub := &Subscription{fn: fn, store: s}

	s.subMu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()

	s.metrics.subscribed(1)
	fn(s.State())
	return sub
}

// unsubscribe removes a subscription.
func (s *Store) unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, existing := range s.subs {
		if existing.id == sub.id {
			// Remove by swapping with last element (order doesn't matter)
			s.subs[i] = s.subs[len(s.subs)-1]
			s.subs[len(s.subs)-1] = nil
			s.subs = s.subs[:len(s.subs)-1]
			s.metrics.subscribed(-1)
			return
		}
	}
}

// notify delivers st to all subscribers.
// Uses copy-before-notify so callbacks may subscribe, unsubscribe or
// mutate the store.
func (s *Store) notify(st *State) {
	s.subMu.RLock()
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(st)
	}
}

// Watch returns a channel that receives a Snapshot of the state on
// subscription and after every mutation. The channel is closed when ctx is
// done. When the consumer falls behind, older snapshots are dropped in favor
// of the most recent one.
func (s *Store) Watch(ctx context.Context, buffer int) <-chan map[string]any {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan map[string]any, buffer)

	var mu sync.Mutex
	closed := false

	sub := s.Subscribe(func(st *State) {
		snap := st.Snapshot()

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	})

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
