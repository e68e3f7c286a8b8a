package httpapi

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultWatchBuffer is the per-connection snapshot buffer for /watch.
	DefaultWatchBuffer = 16

	// DefaultPingInterval is how often /watch pings idle clients.
	DefaultPingInterval = 30 * time.Second

	// DefaultMaxBodyBytes limits PUT bodies.
	DefaultMaxBodyBytes = 1 << 20

	writeWait = 10 * time.Second
)

// Option configures a Handler.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	gatherer     prometheus.Gatherer
	metricsPath  string
	checkOrigin  func(r *http.Request) bool
	watchBuffer  int
	pingInterval time.Duration
	maxBodyBytes int64
}

func defaultConfig() config {
	return config{
		logger:       slog.Default(),
		metricsPath:  "/metrics",
		checkOrigin:  SameOriginCheck,
		watchBuffer:  DefaultWatchBuffer,
		pingInterval: DefaultPingInterval,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// WithLogger sets the logger for request and connection diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGatherer mounts a Prometheus endpoint serving g.
// No endpoint is mounted by default.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// WithMetricsPath sets the metrics endpoint path.
// Default: "/metrics".
func WithMetricsPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.metricsPath = path
		}
	}
}

// WithCheckOrigin sets the websocket origin check for /watch.
// Default: SameOriginCheck.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.checkOrigin = fn
		}
	}
}

// WithWatchBuffer sets how many snapshots a slow /watch client may lag
// before older ones are dropped.
func WithWatchBuffer(n int) Option {
	return func(c *config) {
		c.watchBuffer = n
	}
}

// WithPingInterval sets the /watch keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithMaxBodyBytes limits PUT bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// SameOriginCheck validates that the websocket request origin matches the host.
// Requests without an Origin header (curl, server-side clients) are allowed.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}

	// Compare the host portion (includes port if present)
	return originURL.Host == host
}
