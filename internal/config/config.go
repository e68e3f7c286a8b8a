package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/kodbox/internal/errors"
)

const (
	// ConfigFileName is the name of the default configuration file.
	ConfigFileName = "kodbox.json"

	// DefaultPort is the default HTTP API port.
	DefaultPort = 7070

	// DefaultHost is the default HTTP API host.
	DefaultHost = "localhost"

	// DefaultBackend is the default mirror backend.
	DefaultBackend = BackendMemory

	// DefaultSlot is the default mirror slot name.
	DefaultSlot = "StorageBox"

	// DefaultSQLTable is the default table for SQL backends.
	DefaultSQLTable = "kodbox_mirror"

	// DefaultSQLiteDSN is the database file used by the sqlite backend when
	// no DSN is configured.
	DefaultSQLiteDSN = "kodbox.db"

	// DefaultRedisAddr is the default Redis address.
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisPrefix is the default Redis key prefix.
	DefaultRedisPrefix = "kodbox:mirror:"

	// DefaultS3Prefix is the default S3 object key prefix.
	DefaultS3Prefix = "kodbox/"

	// DefaultS3Region is the default S3 region.
	DefaultS3Region = "us-east-1"

	// DefaultMetricsPath is the default metrics endpoint path.
	DefaultMetricsPath = "/metrics"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Mirror backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
	BackendS3       = "s3"
)

// Backends lists every supported mirror backend.
var Backends = []string{BackendMemory, BackendSQLite, BackendPostgres, BackendMySQL, BackendRedis, BackendS3}

// Config represents the complete kodbox configuration.
type Config struct {
	// Mirror configures the durable mirror.
	Mirror MirrorConfig `json:"mirror,omitempty" yaml:"mirror,omitempty"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Log configures the logger.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// MirrorConfig selects and configures the mirror backend.
type MirrorConfig struct {
	// Backend is one of memory, sqlite, postgres, mysql, redis, s3.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Slot is the slot name inside the backend.
	Slot string `json:"slot,omitempty" yaml:"slot,omitempty"`

	// Session scopes the slot. Empty means the CLI picks one.
	Session string `json:"session,omitempty" yaml:"session,omitempty"`

	// TTL expires the snapshot after a duration (e.g., "24h"). Empty never expires.
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	SQL   SQLConfig   `json:"sql,omitempty" yaml:"sql,omitempty"`
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	S3    S3Config    `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// SQLConfig configures the sqlite, postgres and mysql backends.
type SQLConfig struct {
	// DSN is the driver data source name.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// Table is the mirror table name.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// S3Config configures the s3 backend. Credentials come from the environment.
type S3Config struct {
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the service endpoint (MinIO, localstack).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint on the HTTP API.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Path is the endpoint path (default: "/metrics").
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Namespace is the metrics namespace (default: "kodbox").
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for kodbox.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("K040").
				WithDetail("No config file at " + path).
				WithSuggestion("Create " + ConfigFileName + " or pass --config")
		}
		return nil, errors.New("K041").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("K041").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault is LoadFile, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.CodeOf(err) == "K040" {
		return New(), nil
	}
	return cfg, err
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, in YAML when the
// extension says so.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("K041").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("K041").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Mirror
	if c.Mirror.Backend == "" {
		c.Mirror.Backend = DefaultBackend
	}
	c.Mirror.Backend = strings.ToLower(c.Mirror.Backend)
	if c.Mirror.Slot == "" {
		c.Mirror.Slot = DefaultSlot
	}
	if c.Mirror.SQL.Table == "" {
		c.Mirror.SQL.Table = DefaultSQLTable
	}
	if c.Mirror.SQL.DSN == "" && c.Mirror.Backend == BackendSQLite {
		c.Mirror.SQL.DSN = DefaultSQLiteDSN
	}
	if c.Mirror.Redis.Addr == "" {
		c.Mirror.Redis.Addr = DefaultRedisAddr
	}
	if c.Mirror.Redis.Prefix == "" {
		c.Mirror.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Mirror.S3.Prefix == "" {
		c.Mirror.S3.Prefix = DefaultS3Prefix
	}
	if c.Mirror.S3.Region == "" {
		c.Mirror.S3.Region = DefaultS3Region
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	// Metrics
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "kodbox"
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !knownBackend(c.Mirror.Backend) {
		return errors.New("K041").
			WithDetail("Unknown mirror backend " + strconv.Quote(c.Mirror.Backend)).
			WithSuggestion("Use one of: " + strings.Join(Backends, ", "))
	}

	switch c.Mirror.Backend {
	case BackendPostgres, BackendMySQL:
		if c.Mirror.SQL.DSN == "" {
			return errors.New("K041").
				WithDetail("mirror.sql.dsn is required for the " + c.Mirror.Backend + " backend")
		}
	case BackendS3:
		if c.Mirror.S3.Bucket == "" {
			return errors.New("K041").
				WithDetail("mirror.s3.bucket is required for the s3 backend")
		}
	}

	if _, err := c.TTL(); err != nil {
		return errors.New("K041").
			WithDetail("mirror.ttl: " + err.Error()).
			WithSuggestion(`Use a Go duration such as "30m" or "24h"`)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("K041").
			WithDetail("Port must be between 0 and 65535")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("K041").
			WithDetail("Unknown log level " + strconv.Quote(c.Log.Level)).
			WithSuggestion("Use one of: debug, info, warn, error")
	}

	return nil
}

// TTL parses Mirror.TTL. An empty TTL is zero, which never expires.
func (c *Config) TTL() (time.Duration, error) {
	if c.Mirror.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Mirror.TTL)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "negative duration %s", c.Mirror.TTL)
	}
	return d, nil
}

// Address returns the listen address for the HTTP API.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func formatName(path string) string {
	if isYAML(path) {
		return "YAML"
	}
	return "JSON"
}
