// Package mirror provides the durable mirror behind a kodbox store.
//
// A store keeps its state in memory and, on request, writes a serialized
// snapshot of the whole state object to a single slot in a durable,
// session-scoped medium. The store talks to that slot through the Mirror
// interface:
//
//	type Mirror interface {
//	    Load(ctx context.Context) (snapshot string, ok bool, err error)
//	    Store(ctx context.Context, snapshot string) error
//	    Clear(ctx context.Context) error
//	}
//
// # Backends
//
// Concrete media implement the multi-slot Backend interface, and Slot binds
// one key of a Backend to the Mirror contract:
//
//	backend := mirror.NewMemoryBackend()
//	// or
//	backend := mirror.NewSQLBackend(db, mirror.WithSQLDialect(mirror.DialectSQLite))
//	// or
//	backend := mirror.NewRedisBackend(redisClient)
//	// or
//	backend := mirror.NewS3Backend(s3Client, "my-bucket")
//
//	slot := mirror.NewSlot(backend,
//	    mirror.WithSession(sessionID),
//	    mirror.WithTTL(30*time.Minute),
//	)
//	s := store.New(slot)
//
// # Absence
//
// Backends report a missing or expired key as (nil, nil) from Load. A Slot
// turns that into ok == false. Errors are reserved for backend failures.
package mirror
