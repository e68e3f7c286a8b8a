package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vango-dev/kodbox/internal/config"
	"github.com/vango-dev/kodbox/internal/errors"
	"github.com/vango-dev/kodbox/pkg/mirror"
	"github.com/vango-dev/kodbox/pkg/store"
)

// env is everything a command needs: config, logger, mirror and store.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend mirror.Backend
	slot    *mirror.Slot
	store   *store.Store
	closers []func() error
}

// withEnv loads the config, opens the env, runs fn and closes the env.
func withEnv(cmd *cobra.Command, opts *rootOptions, fn func(e *env) error) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	e, err := openEnv(cmd, cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

// openEnv opens the configured mirror and a store over it. Extra store
// options are applied after the logger.
func openEnv(cmd *cobra.Command, cfg *config.Config, storeOpts ...store.Option) (*env, error) {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	e := &env{cfg: cfg, logger: logger}
	backend, err := e.openBackend(cmd.Context())
	if err != nil {
		e.Close()
		return nil, err
	}
	e.backend = backend
	e.closers = append(e.closers, backend.Close)

	ttl, _ := cfg.TTL()
	e.slot = mirror.NewSlot(backend,
		mirror.WithSlotName(cfg.Mirror.Slot),
		mirror.WithSession(cfg.Mirror.Session),
		mirror.WithTTL(ttl),
	)
	e.store = store.New(e.slot, append([]store.Option{store.WithLogger(logger)}, storeOpts...)...)

	logger.Debug("mirror opened", "backend", cfg.Mirror.Backend, "slot", e.slot.Key())
	return e, nil
}

// Close releases resources in reverse order.
func (e *env) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

// hydrate loads the mirrored snapshot into the store without persisting, so
// that a CLI write rewrites the whole state instead of replacing it with a
// single key.
func (e *env) hydrate(ctx context.Context) error {
	_, err := e.store.Hydrate(ctx)
	return err
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cmd.Flags().Changed("config") {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(opts.configPath)
	}
	if err != nil {
		return nil, err
	}

	if opts.backend != "" {
		cfg.Mirror.Backend = opts.backend
		if opts.backend == config.BackendSQLite && cfg.Mirror.SQL.DSN == "" {
			cfg.Mirror.SQL.DSN = config.DefaultSQLiteDSN
		}
	}
	if opts.session != "" {
		cfg.Mirror.Session = opts.session
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// openBackend builds the configured mirror backend.
func (e *env) openBackend(ctx context.Context) (mirror.Backend, error) {
	mc := e.cfg.Mirror

	switch mc.Backend {
	case config.BackendMemory:
		return mirror.NewMemoryBackend(), nil

	case config.BackendSQLite:
		return e.openSQL(ctx, "sqlite3", mc.SQL.DSN, mirror.DialectSQLite)
	case config.BackendPostgres:
		return e.openSQL(ctx, "postgres", mc.SQL.DSN, mirror.DialectPostgreSQL)
	case config.BackendMySQL:
		return e.openSQL(ctx, "mysql", mc.SQL.DSN, mirror.DialectMySQL)

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     mc.Redis.Addr,
			Password: mc.Redis.Password,
			DB:       mc.Redis.DB,
		})
		e.closers = append(e.closers, client.Close)
		return mirror.NewRedisBackend(redisAdapter{client}, mirror.WithRedisPrefix(mc.Redis.Prefix)), nil

	case config.BackendS3:
		return mirror.NewS3Backend(newS3Client(mc.S3), mc.S3.Bucket, mirror.WithS3Prefix(mc.S3.Prefix)), nil
	}

	return nil, errors.New("K041").WithDetail("unknown mirror backend " + mc.Backend)
}

func (e *env) openSQL(ctx context.Context, driver, dsn string, dialect mirror.SQLDialect) (mirror.Backend, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.New("K041").WithDetail("opening " + driver + " failed").Wrap(err)
	}
	e.closers = append(e.closers, db.Close)
	if dialect == mirror.DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	backend := mirror.NewSQLBackend(db,
		mirror.WithSQLDialect(dialect),
		mirror.WithSQLTableName(e.cfg.Mirror.SQL.Table),
	)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := backend.EnsureSchema(ctx); err != nil {
		backend.Close()
		return nil, errors.New("K021").WithDetail("creating the mirror table failed").Wrap(err)
	}
	return backend, nil
}

// redisAdapter adapts *redis.Client to mirror.RedisClient.
type redisAdapter struct {
	client *redis.Client
}

var _ mirror.RedisClient = redisAdapter{}

func (a redisAdapter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) mirror.RedisStatusCmd {
	return a.client.Set(ctx, key, value, expiration)
}

func (a redisAdapter) Get(ctx context.Context, key string) mirror.RedisStringCmd {
	return a.client.Get(ctx, key)
}

func (a redisAdapter) Del(ctx context.Context, keys ...string) mirror.RedisIntCmd {
	return a.client.Del(ctx, keys...)
}

// newS3Client builds an S3 client with credentials from the standard AWS
// environment variables.
func newS3Client(c config.S3Config) *s3.Client {
	opts := s3.Options{
		Region: c.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
					Source:          "EnvironmentVariables",
				}, nil
			})),
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
