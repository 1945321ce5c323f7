// Package config defines the configuration structures of the ledger. No I/O
// lives here, only plain data types and validation.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// DSN renders the lib/pq connection URL for this configuration.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.DBName,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	if d.StatementTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(d.StatementTimeout.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds the risk catalogue cache parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | console
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	// Textfile, when set, receives a text-format dump of the registry after
	// each CLI command, for the node_exporter textfile collector.
	Textfile string `mapstructure:"textfile"`
}

// EventsConfig controls publishing of ledger change events to Kafka.
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
	Acks         string        `mapstructure:"acks"`        // none | one | all
	Compression  string        `mapstructure:"compression"` // "" | gzip | snappy | lz4 | zstd
	MaxRetries   int           `mapstructure:"max_retries"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SASLMechanism is empty, PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	SASLMechanism string `mapstructure:"sasl_mechanism"`
	SASLUsername  string `mapstructure:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	TLSCAPath     string `mapstructure:"tls_ca_path"`
}

// SnapshotConfig points at the S3-compatible bucket that receives
// derivative snapshots.
type SnapshotConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

// ServerConfig holds the HTTP listener parameters of derivctl serve.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds the repository work of a single request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Log       LogConfig      `mapstructure:"log"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Events    EventsConfig   `mapstructure:"events"`
	Snapshots SnapshotConfig `mapstructure:"snapshots"`
}

var (
	validSSLModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validAcks       = []string{"none", "one", "all"}
	validCodecs     = []string{"", "gzip", "snappy", "lz4", "zstd"}
	validSASL       = []string{"", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
)

// Validate returns the first semantic error found in c.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("config: server.addr %q is not host:port: %w", c.Server.Addr, err)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("config: server.request_timeout must be positive")
	}
	if strings.TrimSpace(c.Database.Host) == "" {
		return fmt.Errorf("config: database.host must not be empty")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if strings.TrimSpace(c.Database.DBName) == "" {
		return fmt.Errorf("config: database.db_name must not be empty")
	}
	if !contains(validSSLModes, c.Database.SSLMode) {
		return fmt.Errorf("config: database.ssl_mode %q is not one of %v", c.Database.SSLMode, validSSLModes)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("config: database.max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Redis.Enabled {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("config: redis.addr must not be empty when redis is enabled")
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			return fmt.Errorf("config: redis.db %d is out of range [0, 15]", c.Redis.DB)
		}
		if c.Redis.DefaultTTL <= 0 {
			return fmt.Errorf("config: redis.default_ttl must be positive")
		}
	}

	if !contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("config: log.level %q is not one of %v", c.Log.Level, validLogLevels)
	}
	if !contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("config: log.format %q is not one of %v", c.Log.Format, validLogFormats)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		return fmt.Errorf("config: metrics.namespace must not be empty when metrics are enabled")
	}

	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("config: events.brokers must not be empty when events are enabled")
		}
		if !contains(validAcks, c.Events.Acks) {
			return fmt.Errorf("config: events.acks %q is not one of %v", c.Events.Acks, validAcks)
		}
		if !contains(validCodecs, c.Events.Compression) {
			return fmt.Errorf("config: events.compression %q is not one of %v", c.Events.Compression, validCodecs)
		}
		if !contains(validSASL, c.Events.SASLMechanism) {
			return fmt.Errorf("config: events.sasl_mechanism %q is not one of %v", c.Events.SASLMechanism, validSASL)
		}
		if c.Events.MaxRetries < 0 {
			return fmt.Errorf("config: events.max_retries must be >= 0")
		}
	}

	if c.Snapshots.Enabled {
		if strings.TrimSpace(c.Snapshots.Endpoint) == "" {
			return fmt.Errorf("config: snapshots.endpoint must not be empty when snapshots are enabled")
		}
		if strings.TrimSpace(c.Snapshots.Bucket) == "" {
			return fmt.Errorf("config: snapshots.bucket must not be empty when snapshots are enabled")
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
