package cli

import (
	"context"
	"net/http"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/redis"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// SchemaMigrator is the part of postgres.Migrator the migrate command uses.
type SchemaMigrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationState, error)
	Force(v int) error
}

// SnapshotStore is the part of minio.SnapshotStore the snapshot commands use.
type SnapshotStore interface {
	Save(ctx context.Context, d *derivative.Derivative) (*minio.SnapshotInfo, error)
	List(ctx context.Context, id int64) ([]minio.SnapshotInfo, error)
	Latest(ctx context.Context, id int64) (*minio.DerivativeSnapshot, error)
	Load(ctx context.Context, key string) (*minio.DerivativeSnapshot, error)
}

// Probe checks one dependency for the readiness endpoint.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Backend bundles the ports a command works against. Snapshots is nil when
// the snapshot archive is disabled or the object store was unreachable.
// Metrics is nil when metrics are disabled.
type Backend struct {
	Risks       risk.Repository
	Obligations derivative.ObligationRepository
	Derivatives derivative.Repository
	Migrator    SchemaMigrator
	Snapshots   SnapshotStore
	Metrics     http.Handler
	Probes      []Probe

	closers []func() error
}

// BackendFactory opens a Backend for one command invocation.
type BackendFactory func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error)

// OnClose registers fn to run on Close. Hooks run in reverse order.
func (b *Backend) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close runs every hook and returns the first error.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// OpenBackend wires the PostgreSQL repositories and the optional layers
// around them from cfg: metrics, the redis risk cache, change events and
// the snapshot archive. An optional layer that cannot connect is logged and
// left out.
func OpenBackend(_ context.Context, cfg *config.Config, log logging.Logger) (*Backend, error) {
	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	b := &Backend{Migrator: postgres.NewMigrator(cfg.Database.DSN(), log)}
	b.OnClose(conn.Close)
	b.Probes = append(b.Probes, Probe{Name: "postgres", Check: conn.HealthCheck})

	var (
		opts    []repositories.Option
		metrics *prometheus.RepositoryMetrics
	)
	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace: cfg.Metrics.Namespace,
			Subsystem: cfg.Metrics.Subsystem,
		}, log)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		metrics = prometheus.NewRepositoryMetrics(collector)
		opts = append(opts, repositories.WithMetrics(metrics))
		pool := metrics
		b.Metrics = poolStatsHandler(
			collector.Handler(),
			func() { pool.RecordPoolStats(conn.Stats()) },
		)
		if path := cfg.Metrics.Textfile; path != "" {
			b.OnClose(func() error {
				metrics.RecordPoolStats(conn.Stats())
				return collector.WriteTextfile(path)
			})
		}
	}

	b.Risks = repositories.NewRiskRepository(conn, log, opts...)
	if cfg.Redis.Enabled {
		if cached := wrapRiskCache(b, cfg, log, metrics); cached != nil {
			opts = append(opts, repositories.WithRisksAdded(cached.Forget))
		}
	}
	b.Obligations = repositories.NewObligationRepository(conn, log, opts...)
	b.Derivatives = repositories.NewDerivativeRepository(conn, log, opts...)

	if cfg.Events.Enabled {
		wrapPublishing(b, cfg, log)
	}
	if cfg.Snapshots.Enabled {
		openSnapshots(b, cfg, log)
	}
	return b, nil
}

// wrapRiskCache puts the redis cache in front of b.Risks and returns it, or
// nil when redis is unreachable.
func wrapRiskCache(b *Backend, cfg *config.Config, log logging.Logger, metrics *prometheus.RepositoryMetrics) *redis.CachedRiskRepository {
	client, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		log.Warn("risk cache unavailable, reading from postgres", logging.Err(err))
		return nil
	}
	b.OnClose(client.Close)
	b.Probes = append(b.Probes, Probe{Name: "redis", Check: client.Ping})
	cache := redis.NewRedisCache(client, log,
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Redis.DefaultTTL),
	)
	cached := redis.NewCachedRiskRepository(b.Risks, cache, cfg.Redis.DefaultTTL, log, metrics)
	b.Risks = cached
	return cached
}

// wrapPublishing puts the event decorators outermost so an event follows
// every successful write, cached or not.
func wrapPublishing(b *Backend, cfg *config.Config, log logging.Logger) {
	producer, err := kafka.NewProducer(cfg.Events, log)
	if err != nil {
		log.Warn("change events disabled", logging.Err(err))
		return
	}
	b.OnClose(producer.Close)
	events := kafka.NewEmitter(producer, kafka.NewTopics(cfg.Events.TopicPrefix), log)
	b.Risks = kafka.NewRiskRepository(b.Risks, events)
	b.Obligations = kafka.NewObligationRepository(b.Obligations, events)
	b.Derivatives = kafka.NewDerivativeRepository(b.Derivatives, events)
}

func openSnapshots(b *Backend, cfg *config.Config, log logging.Logger) {
	client, err := minio.NewClient(cfg.Snapshots, log)
	if err != nil {
		log.Warn("snapshot store unavailable", logging.Err(err))
		return
	}
	b.OnClose(client.Close)
	b.Probes = append(b.Probes, Probe{Name: "minio", Check: func(ctx context.Context) error {
		_, err := client.HealthCheck(ctx)
		return err
	}})
	b.Snapshots = minio.NewSnapshotStore(client, log)
}

// poolStatsHandler refreshes the connection pool gauges before each scrape.
func poolStatsHandler(next http.Handler, refresh func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh()
		next.ServeHTTP(w, r)
	})
}

// EventSource is the part of kafka.Consumer the tail command uses.
type EventSource interface {
	Consume(ctx context.Context, limit int, fn kafka.Handler) (int, error)
	Close() error
}

// EventSourceFactory opens an EventSource for one tail invocation.
type EventSourceFactory func(cfg *config.Config, opts kafka.ConsumerOptions, log logging.Logger) (EventSource, error)

// OpenEventSource joins the ledger topics named in opts.
func OpenEventSource(cfg *config.Config, opts kafka.ConsumerOptions, log logging.Logger) (EventSource, error) {
	if !cfg.Events.Enabled {
		return nil, errors.NewValidation("change events are disabled; set events.enabled")
	}
	c, err := kafka.NewConsumer(cfg.Events, opts, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}
