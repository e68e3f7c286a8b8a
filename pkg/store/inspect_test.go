package store

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func inspectFixture() *Store {
	s := newTestStore(nil)
	s.Set("count", 3)
	s.Set("name", "ada")
	s.Set("tags", []string{"a", "b"}, Locked())
	s.Bind("logout", func() {})
	return s
}

func TestInspect(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		opts []InspectOption
	}{
		{"Plain", nil},
		{"Values", []InspectOption{WithValues()}},
		{"Detailed", []InspectOption{Detailed()}},
		{"DetailedValues", []InspectOption{Detailed(), WithValues()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := inspectFixture()
			g.Assert(t, tt.name, []byte(s.InspectString(tt.opts...)))
		})
	}
}

func TestInspectEmpty(t *testing.T) {
	s := newTestStore(nil)

	want := "state: 0 entries, 0 bindings\n"
	if got := s.InspectString(Detailed(), WithValues()); got != want {
		t.Errorf("InspectString() = %q, want %q", got, want)
	}
}

func TestInspectUnencodableValue(t *testing.T) {
	s := newTestStore(nil)
	s.Set("ch", make(chan int))

	got := s.InspectString(WithValues())
	want := "state: 1 entry, 0 bindings\n  ch = 0x"
	if len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("InspectString() = %q, want prefix %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestInspectWriteError(t *testing.T) {
	s := inspectFixture()
	if err := s.Inspect(failingWriter{}); err == nil {
		t.Error("Inspect should return the writer's error")
	}
}

func TestInspectDoesNotRecover(t *testing.T) {
	m := newRecordingMirror(nil)
	m.seed(`{"a":1}`)
	s := newTestStore(m)

	s.InspectString(Detailed())
	if loads, _, _ := m.counts(); loads != 0 {
		t.Errorf("Inspect read the mirror %d times", loads)
	}
}
