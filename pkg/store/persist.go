package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	kerrors "github.com/vango-dev/kodbox/internal/errors"
)

// persist writes the current state to the mirror. Caller holds s.mu.
func (s *Store) persist(ctx context.Context, op string) error {
	if s.mirror == nil {
		return nil
	}

	data, err := s.state.MarshalJSON()
	if err != nil {
		s.metrics.persisted("encode_error", 0)
		s.logger.Error("snapshot serialization failed", "op", op, "error", err, "code", "K020")
		return kerrors.New("K020").Wrap(err)
	}

	ctx, span := s.tracer.Start(ctx, "kodbox.mirror.store", trace.WithAttributes(
		attribute.String("kodbox.op", op),
		attribute.Int("kodbox.bytes", len(data)),
	))
	defer span.End()

	start := time.Now()
	err = s.mirror.Store(ctx, string(data))
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.persisted("error", elapsed)
		s.logger.Error("mirror write failed", "op", op, "error", err, "code", "K021")
		return mirrorError("K021", err)
	}

	s.metrics.persisted("ok", elapsed)
	s.logger.Debug("snapshot persisted", "op", op, "bytes", len(data))
	return nil
}

// clearMirror removes the snapshot. Caller holds s.mu.
func (s *Store) clearMirror(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "kodbox.mirror.clear")
	defer span.End()

	if err := s.mirror.Clear(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("mirror clear failed", "error", err, "code", "K022")
		return mirrorError("K022", err)
	}
	return nil
}

// loadSnapshot reads and decodes the snapshot. A missing or undecodable
// snapshot yields a nil state and no error. Caller holds s.mu.
func (s *Store) loadSnapshot(ctx context.Context, attrs ...attribute.KeyValue) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "kodbox.mirror.load", trace.WithAttributes(attrs...))
	defer span.End()

	snapshot, ok, err := s.mirror.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.recovery("error")
		return nil, err
	}
	if !ok {
		s.metrics.recovery("absent")
		return nil, nil
	}
	span.SetAttributes(attribute.Int("kodbox.bytes", len(snapshot)))

	st, err := decodeState(snapshot)
	if err != nil {
		s.metrics.recovery("corrupt")
		s.logger.Debug("ignoring undecodable snapshot", "error", err)
		return nil, nil
	}
	return st, nil
}

// recover loads the snapshot and returns it when it holds key. A missing,
// unreadable or undecodable snapshot is a miss. Caller holds s.mu.
func (s *Store) recover(ctx context.Context, key string) (*State, any, bool) {
	if s.mirror == nil {
		return nil, nil, false
	}

	st, err := s.loadSnapshot(ctx, attribute.String("kodbox.key", key))
	if err != nil {
		s.logger.Warn("mirror load failed", "key", key, "error", err)
		return nil, nil, false
	}
	if st == nil {
		return nil, nil, false
	}

	value, ok := st.Get(key)
	if !ok {
		s.metrics.recovery("miss")
		return nil, nil, false
	}

	s.metrics.recovery("hit")
	return st, value, true
}
