package store

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for mirror operations.
// Default: otel.Tracer("kodbox").
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WriteOption modifies a single Set, SetAsync or Remove call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	locked      bool
	persist     bool
	refresh     bool
	destructive bool
}

func collectWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Locked installs the entry as locked. Plain writes and removals of a
// locked entry are rejected until Destructive() is used. Writing with
// Locked() again replaces a locked entry.
func Locked() WriteOption {
	return func(o *writeOptions) {
		o.locked = true
	}
}

// Persist writes the whole state object to the mirror before the broadcast.
func Persist() WriteOption {
	return func(o *writeOptions) {
		o.persist = true
	}
}

// Refresh clears the mirror slot before the persistence write. Only SetAsync
// honors it, and only together with Persist().
func Refresh() WriteOption {
	return func(o *writeOptions) {
		o.refresh = true
	}
}

// Destructive overrides the lock check.
func Destructive() WriteOption {
	return func(o *writeOptions) {
		o.destructive = true
	}
}

// InspectOption modifies an Inspect call.
type InspectOption func(*inspectOptions)

type inspectOptions struct {
	detailed bool
	values   bool
}

// Detailed adds entry attributes and the bound callables to the dump.
func Detailed() InspectOption {
	return func(o *inspectOptions) {
		o.detailed = true
	}
}

// WithValues adds entry values to the dump.
func WithValues() InspectOption {
	return func(o *inspectOptions) {
		o.values = true
	}
}
