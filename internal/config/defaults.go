package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerAddr            = ":8080"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerIdleTimeout     = 60 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultServerRequestTimeout  = 10 * time.Second

	DefaultDBHost             = "localhost"
	DefaultDBPort             = 5432
	DefaultDBUser             = "postgres"
	DefaultDBName             = "insurance"
	DefaultDBSSLMode          = "disable"
	DefaultDBMaxOpenConns     = 25
	DefaultDBMaxIdleConns     = 10
	DefaultDBConnMaxLifetime  = 30 * time.Minute
	DefaultDBConnMaxIdleTime  = 5 * time.Minute
	DefaultDBStatementTimeout = 30 * time.Second
	DefaultDBConnectTimeout   = 5 * time.Second

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisPoolSize = 10
	DefaultRedisTTL      = 10 * time.Minute
	DefaultRedisPrefix   = "deriv:"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"

	DefaultMetricsNamespace = "insurance"
	DefaultMetricsSubsystem = "ledger"

	DefaultEventsTopicPrefix  = "ledger"
	DefaultEventsAcks         = "all"
	DefaultEventsMaxRetries   = 3
	DefaultEventsBatchTimeout = 10 * time.Millisecond
	DefaultEventsWriteTimeout = 10 * time.Second

	DefaultSnapshotRegion = "us-east-1"
	DefaultSnapshotBucket = "derivative-snapshots"
	DefaultSnapshotPrefix = "snapshots/"
)

// ApplyDefaults fills every zero-value field in cfg. Explicit values win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	srv := &cfg.Server
	if srv.Addr == "" {
		srv.Addr = DefaultServerAddr
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = DefaultServerReadTimeout
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = DefaultServerWriteTimeout
	}
	if srv.IdleTimeout == 0 {
		srv.IdleTimeout = DefaultServerIdleTimeout
	}
	if srv.ShutdownTimeout == 0 {
		srv.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if srv.RequestTimeout == 0 {
		srv.RequestTimeout = DefaultServerRequestTimeout
	}

	db := &cfg.Database
	if db.Host == "" {
		db.Host = DefaultDBHost
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.User == "" {
		db.User = DefaultDBUser
	}
	if db.DBName == "" {
		db.DBName = DefaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = DefaultDBMaxIdleConns
		if db.MaxIdleConns > db.MaxOpenConns {
			db.MaxIdleConns = db.MaxOpenConns
		}
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = DefaultDBConnMaxLifetime
	}
	if db.ConnMaxIdleTime == 0 {
		db.ConnMaxIdleTime = DefaultDBConnMaxIdleTime
	}
	if db.StatementTimeout == 0 {
		db.StatementTimeout = DefaultDBStatementTimeout
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = DefaultDBConnectTimeout
	}

	r := &cfg.Redis
	if r.Addr == "" {
		r.Addr = DefaultRedisAddr
	}
	if r.PoolSize == 0 {
		r.PoolSize = DefaultRedisPoolSize
	}
	if r.DefaultTTL == 0 {
		r.DefaultTTL = DefaultRedisTTL
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = DefaultRedisPrefix
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}

	ev := &cfg.Events
	if ev.TopicPrefix == "" {
		ev.TopicPrefix = DefaultEventsTopicPrefix
	}
	if ev.Acks == "" {
		ev.Acks = DefaultEventsAcks
	}
	if ev.MaxRetries == 0 {
		ev.MaxRetries = DefaultEventsMaxRetries
	}
	if ev.BatchTimeout == 0 {
		ev.BatchTimeout = DefaultEventsBatchTimeout
	}
	if ev.WriteTimeout == 0 {
		ev.WriteTimeout = DefaultEventsWriteTimeout
	}

	sn := &cfg.Snapshots
	if sn.Region == "" {
		sn.Region = DefaultSnapshotRegion
	}
	if sn.Bucket == "" {
		sn.Bucket = DefaultSnapshotBucket
	}
	if sn.Prefix == "" {
		sn.Prefix = DefaultSnapshotPrefix
	}
}

// registerKeys declares every key on v so AutomaticEnv can resolve env-only
// values during Unmarshal.
func registerKeys(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.idle_timeout", DefaultServerIdleTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.request_timeout", DefaultServerRequestTimeout)

	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", DefaultDBUser)
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.ssl_mode", DefaultDBSSLMode)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", DefaultDBConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", DefaultDBConnMaxIdleTime)
	v.SetDefault("database.statement_timeout", DefaultDBStatementTimeout)
	v.SetDefault("database.connect_timeout", DefaultDBConnectTimeout)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.default_ttl", DefaultRedisTTL)
	v.SetDefault("redis.key_prefix", DefaultRedisPrefix)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output", DefaultLogOutput)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.subsystem", DefaultMetricsSubsystem)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic_prefix", DefaultEventsTopicPrefix)
	v.SetDefault("events.acks", DefaultEventsAcks)
	v.SetDefault("events.compression", "")
	v.SetDefault("events.max_retries", DefaultEventsMaxRetries)
	v.SetDefault("events.batch_timeout", DefaultEventsBatchTimeout)
	v.SetDefault("events.write_timeout", DefaultEventsWriteTimeout)
	v.SetDefault("events.sasl_mechanism", "")
	v.SetDefault("events.sasl_username", "")
	v.SetDefault("events.sasl_password", "")
	v.SetDefault("events.tls_enabled", false)
	v.SetDefault("events.tls_ca_path", "")

	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.endpoint", "")
	v.SetDefault("snapshots.access_key_id", "")
	v.SetDefault("snapshots.secret_access_key", "")
	v.SetDefault("snapshots.use_ssl", false)
	v.SetDefault("snapshots.region", DefaultSnapshotRegion)
	v.SetDefault("snapshots.bucket", DefaultSnapshotBucket)
	v.SetDefault("snapshots.prefix", DefaultSnapshotPrefix)
}
