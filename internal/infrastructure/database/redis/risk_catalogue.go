package redis

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const (
	riskKeyPrefix = "risk"
	allRisksKey   = "risks:all"
)

func riskKey(code string) string { return riskKeyPrefix + ":" + code }

// CachedRiskRepository serves FindByCode and FindAll from the cache and
// invalidates it on every write. A failing cache is logged and bypassed.
type CachedRiskRepository struct {
	inner   risk.Repository
	cache   Cache
	ttl     time.Duration
	logger  logging.Logger
	metrics *prometheus.RepositoryMetrics
}

var _ risk.Repository = (*CachedRiskRepository)(nil)

// NewCachedRiskRepository wraps inner. metrics may be nil.
func NewCachedRiskRepository(inner risk.Repository, cache Cache, ttl time.Duration, log logging.Logger, metrics *prometheus.RepositoryMetrics) *CachedRiskRepository {
	return &CachedRiskRepository{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		logger:  logging.OrNop(log).Named("risk_cache"),
		metrics: metrics,
	}
}

func (r *CachedRiskRepository) Save(ctx context.Context, rk risk.Risk) error {
	if err := r.inner.Save(ctx, rk); err != nil {
		return err
	}
	r.invalidate(ctx, riskKey(strings.ToUpper(strings.TrimSpace(rk.Code))), allRisksKey)
	return nil
}

func (r *CachedRiskRepository) FindByCode(ctx context.Context, code string) (risk.Risk, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var (
		rk     risk.Risk
		loaded bool
	)
	err := r.cache.GetOrSet(ctx, riskKey(code), &rk, r.ttl, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return r.inner.FindByCode(ctx, code)
	})
	if err == nil {
		r.count(loaded)
		return rk, nil
	}
	if errors.IsCode(err, errors.ErrCodeCacheError) || errors.IsCode(err, errors.ErrCodeSerialization) {
		r.logger.Warn("Risk cache unavailable, reading through", logging.RiskCode(code), logging.Err(err))
		return r.inner.FindByCode(ctx, code)
	}
	return risk.Risk{}, err
}

func (r *CachedRiskRepository) FindAll(ctx context.Context) ([]risk.Risk, error) {
	var (
		rs     []risk.Risk
		loaded bool
	)
	err := r.cache.GetOrSet(ctx, allRisksKey, &rs, r.ttl, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return r.inner.FindAll(ctx)
	})
	if err == nil {
		r.count(loaded)
		if rs == nil {
			rs = []risk.Risk{}
		}
		return rs, nil
	}
	if errors.IsCode(err, errors.ErrCodeCacheError) || errors.IsCode(err, errors.ErrCodeSerialization) {
		r.logger.Warn("Risk cache unavailable, reading through", logging.Err(err))
		return r.inner.FindAll(ctx)
	}
	return nil, err
}

func (r *CachedRiskRepository) FindByCategory(ctx context.Context, c risk.Category) ([]risk.Risk, error) {
	return r.inner.FindByCategory(ctx, c)
}

func (r *CachedRiskRepository) FindByNamePattern(ctx context.Context, pattern string) ([]risk.Risk, error) {
	return r.inner.FindByNamePattern(ctx, pattern)
}

func (r *CachedRiskRepository) FindByRiskFactorRange(ctx context.Context, min, max float64) ([]risk.Risk, error) {
	return r.inner.FindByRiskFactorRange(ctx, min, max)
}

func (r *CachedRiskRepository) FindByObligationID(ctx context.Context, obligationID int64) ([]risk.Risk, error) {
	return r.inner.FindByObligationID(ctx, obligationID)
}

func (r *CachedRiskRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.inner.ExistsByCode(ctx, code)
}

func (r *CachedRiskRepository) Delete(ctx context.Context, code string) (bool, error) {
	deleted, err := r.inner.Delete(ctx, code)
	if err != nil {
		return false, err
	}
	if deleted {
		r.invalidate(ctx, riskKey(strings.ToUpper(strings.TrimSpace(code))), allRisksKey)
	}
	return deleted, nil
}

func (r *CachedRiskRepository) SeedStandard(ctx context.Context) (int, error) {
	n, err := r.inner.SeedStandard(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		if _, err := r.cache.DeleteByPrefix(ctx, riskKeyPrefix); err != nil {
			r.logger.Warn("Failed to invalidate risk cache", logging.Err(err))
		}
	}
	return n, nil
}

// Forget drops the cached entries for codes and the cached catalogue. It is
// the hook for writes that add risks without going through this repository.
func (r *CachedRiskRepository) Forget(ctx context.Context, codes []string) {
	keys := make([]string, 0, len(codes)+1)
	for _, c := range codes {
		keys = append(keys, riskKey(strings.ToUpper(strings.TrimSpace(c))))
	}
	r.invalidate(ctx, append(keys, allRisksKey)...)
}

func (r *CachedRiskRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate risk cache", logging.Any("keys", keys), logging.Err(err))
	}
}

func (r *CachedRiskRepository) count(loaded bool) {
	if loaded {
		r.metrics.CacheMiss()
	} else {
		r.metrics.CacheHit()
	}
}
