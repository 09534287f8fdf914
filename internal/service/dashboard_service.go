package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shs-portal/enrollment-api/internal/models"
	appErrors "github.com/shs-portal/enrollment-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:stats"

type dashboardRepository interface {
	CountApplicantsByStatus(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error)
	CountStudentsByStatus(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error)
	CountStudentsByGrade(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error)
	CountStudentsByStrand(ctx context.Context, rng models.DashboardRange) ([]models.StatusCount, error)
	SectionHeadcounts(ctx context.Context) ([]models.SectionHeadcount, error)
}

// DashboardService aggregates registrar statistics with a short Redis cache.
type DashboardService struct {
	repo   dashboardRepository
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDashboardService constructs DashboardService. The cache client may be
// nil, in which case every request hits the database.
func NewDashboardService(repo dashboardRepository, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Stats returns the aggregate dashboard. Unfiltered results are served from
// cache; date-ranged queries always hit the database.
func (s *DashboardService) Stats(ctx context.Context, rng models.DashboardRange) (*models.DashboardStats, error) {
	cacheable := rng.From == nil && rng.To == nil
	if cacheable && s.cache != nil {
		if raw, err := s.cache.Get(ctx, dashboardCacheKey).Result(); err == nil {
			var cached models.DashboardStats
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats := &models.DashboardStats{GeneratedAt: time.Now().UTC()}
	var err error
	if stats.ApplicantsByStatus, err = s.repo.CountApplicantsByStatus(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applicants")
	}
	if stats.StudentsByStatus, err = s.repo.CountStudentsByStatus(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if stats.StudentsByGrade, err = s.repo.CountStudentsByGrade(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students by grade")
	}
	if stats.StudentsByStrand, err = s.repo.CountStudentsByStrand(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students by strand")
	}
	if stats.SectionHeadcounts, err = s.repo.SectionHeadcounts(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count section rosters")
	}

	if cacheable && s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}
