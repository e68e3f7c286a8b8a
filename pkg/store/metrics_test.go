package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(WithRegistry(reg))

	m := newRecordingMirror(nil)
	m.seed(`{"old":1}`)
	s := newTestStore(m, WithMetrics(metrics))

	sub := s.Subscribe(func(*State) {})
	if got := testutil.ToFloat64(metrics.subscribers); got != 1 {
		t.Errorf("subscribers = %v, want 1", got)
	}

	s.Get("old")                       // hit, echo write
	s.Get("missing")                   // miss
	s.Set("k", 1, Locked(), Persist()) // ok write
	s.Set("k", 2)                      // lock violation
	s.Remove("k")                      // lock violation
	s.Invoke("nothing")

	m.storeErr = errors.New("down")
	s.SetAsync(context.Background(), "x", 1, Persist())

	sub.Unsubscribe()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"broadcasts", testutil.ToFloat64(metrics.broadcasts), 5},
		{"recoveries hit", testutil.ToFloat64(metrics.recoveries.WithLabelValues("hit")), 1},
		{"recoveries miss", testutil.ToFloat64(metrics.recoveries.WithLabelValues("miss")), 1},
		{"persist ok", testutil.ToFloat64(metrics.persistWrites.WithLabelValues("ok")), 2},
		{"persist error", testutil.ToFloat64(metrics.persistWrites.WithLabelValues("error")), 1},
		{"lock set", testutil.ToFloat64(metrics.lockViolations.WithLabelValues("set")), 1},
		{"lock remove", testutil.ToFloat64(metrics.lockViolations.WithLabelValues("remove")), 1},
		{"not bound", testutil.ToFloat64(metrics.notBoundTotal), 1},
		{"subscribers", testutil.ToFloat64(metrics.subscribers), 0},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("got %v, want %v", c.got, c.want)
			}
		})
	}
}

func TestMetricsNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(WithRegistry(reg), WithNamespace("app"), WithSubsystem("box"))
	s := newTestStore(nil, WithMetrics(metrics))
	s.Touch()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "app_box_broadcasts_total" {
			found = true
		}
	}
	if !found {
		t.Error("app_box_broadcasts_total not registered")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.broadcast()
	m.persisted("ok", 1)
	m.recovery("hit")
	m.lockViolation("set")
	m.notBound()
	m.subscribed(1)
}
