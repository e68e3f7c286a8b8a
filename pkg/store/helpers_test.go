package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// eventLog records the order of mirror writes and broadcasts.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingMirror is an in-memory Mirror that counts calls.
type recordingMirror struct {
	mu       sync.Mutex
	snapshot string
	present  bool

	loads  int
	stores int
	clears int

	loadErr  error
	storeErr error
	clearErr error

	log *eventLog
}

func newRecordingMirror(log *eventLog) *recordingMirror {
	return &recordingMirror{log: log}
}

func (m *recordingMirror) Load(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	return m.snapshot, m.present, nil
}

func (m *recordingMirror) Store(ctx context.Context, snapshot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.log != nil {
		m.log.add("store")
	}
	if m.storeErr != nil {
		return m.storeErr
	}
	m.snapshot = snapshot
	m.present = true
	return nil
}

func (m *recordingMirror) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.log != nil {
		m.log.add("clear")
	}
	if m.clearErr != nil {
		return m.clearErr
	}
	m.snapshot = ""
	m.present = false
	return nil
}

func (m *recordingMirror) seed(snapshot string) {
	m.mu.Lock()
	m.snapshot = snapshot
	m.present = true
	m.mu.Unlock()
}

func (m *recordingMirror) counts() (loads, stores, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads, m.stores, m.clears
}

func (m *recordingMirror) content() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.present
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(m *recordingMirror, opts ...Option) *Store {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	if m == nil {
		return New(nil, opts...)
	}
	return New(m, opts...)
}

// countBroadcasts subscribes and returns a counter of broadcasts after the
// initial delivery.
func countBroadcasts(s *Store) func() int {
	var mu sync.Mutex
	n := -1 // Subscribe delivers once immediately
	s.Subscribe(func(*State) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
}
