// Package dashboard aggregates the back-office rollups. Results are cached
// with a short TTL; writers invalidate the key so the numbers never lag a
// mutation by more than the TTL.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/internal/repositories/catalog"
	"github.com/Ramsey-B/laurel/internal/repositories/loanticket"
	"github.com/Ramsey-B/laurel/internal/repositories/pendingchange"
	changeservice "github.com/Ramsey-B/laurel/internal/services/pendingchange"
	"github.com/Ramsey-B/laurel/pkg/cache"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

type Service struct {
	changes    pendingchange.PendingChangeRepository
	properties catalog.PropertyRepository
	banners    catalog.BannerRepository
	tickets    loanticket.LoanTicketRepository
	cache      cache.Cache
	ttl        time.Duration
	logger     ectologger.Logger
	now        func() time.Time
}

// NewService creates a new dashboard service
func NewService(
	changes pendingchange.PendingChangeRepository,
	properties catalog.PropertyRepository,
	banners catalog.BannerRepository,
	tickets loanticket.LoanTicketRepository,
	cacheClient cache.Cache,
	ttl time.Duration,
	logger ectologger.Logger,
) *Service {
	return &Service{
		changes:    changes,
		properties: properties,
		banners:    banners,
		tickets:    tickets,
		cache:      cacheClient,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Stats serves the cached rollup, recomputing on a miss. Cache failures
// degrade to a direct computation rather than an error.
func (s *Service) Stats(ctx context.Context) (models.DashboardStats, error) {
	ctx, span := tracing.StartSpan(ctx, "dashboard.Stats")
	defer span.End()

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, changeservice.DashboardCacheKey)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Dashboard cache read failed")
		} else if hit {
			var stats models.DashboardStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				metrics.DashboardCacheHits.WithLabelValues("hit").Inc()
				return stats, nil
			}
			s.logger.WithContext(ctx).WithError(err).Warn("Discarding unreadable dashboard cache entry")
		}
	}
	metrics.DashboardCacheHits.WithLabelValues("miss").Inc()

	stats, err := s.compute(ctx)
	if err != nil {
		return models.DashboardStats{}, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, changeservice.DashboardCacheKey, string(encoded), s.ttl); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Dashboard cache write failed")
			}
		}
	}

	return stats, nil
}

func (s *Service) compute(ctx context.Context) (models.DashboardStats, error) {
	ctx, span := tracing.StartSpan(ctx, "dashboard.compute")
	defer span.End()

	stats := models.DashboardStats{GeneratedAt: s.now().UTC()}

	var err error
	if stats.Properties.Total, err = s.properties.CountActive(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Properties.Deleted, err = s.properties.CountDeleted(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Banners.Total, err = s.banners.CountActive(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Banners.Deleted, err = s.banners.CountDeleted(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.PendingChanges, err = s.changes.CountByStatus(ctx); err != nil {
		return models.DashboardStats{}, err
	}
	if stats.Tickets, err = s.tickets.Stats(ctx, stats.GeneratedAt); err != nil {
		return models.DashboardStats{}, err
	}

	return stats, nil
}
