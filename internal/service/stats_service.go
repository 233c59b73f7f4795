package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

type statusCounter interface {
	StatusCounts(ctx context.Context, studentID, courseID string, from, to *time.Time) ([]models.StatusCount, error)
}

type semesterCalendar interface {
	FindByName(ctx context.Context, name string) (*models.Semester, error)
	List(ctx context.Context) ([]models.Semester, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type statsMetrics interface {
	IncCacheHit()
	IncCacheMiss()
	ObserveDBQuery(query string, duration time.Duration)
}

// StatsService computes presence statistics on demand. The counts are
// recomputed from the store on every call rather than incrementally
// maintained; the optional cache only shortcuts repeated identical reads.
type StatsService struct {
	repo      statusCounter
	semesters semesterCalendar
	cache     statsCache
	metrics   statsMetrics
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewStatsService constructs the statistics aggregator. A nil cache
// disables caching.
func NewStatsService(repo statusCounter, semesters semesterCalendar, cache statsCache, metrics statsMetrics, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, semesters: semesters, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// StatsRequest scopes a statistics computation.
type StatsRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Semester  string `json:"semester"`
}

// ComputeStats counts entries by status for a student, optionally narrowed
// by course and by the semester window supplied by the academic calendar.
// The second return value reports whether the result came from cache.
func (s *StatsService) ComputeStats(ctx context.Context, req StatsRequest) (*models.AttendanceStats, bool, error) {
	if req.StudentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}

	var from, to *time.Time
	if req.Semester != "" {
		semester, err := s.semesters.FindByName(ctx, req.Semester)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, appErrors.Clone(appErrors.ErrNotFound, "unknown semester")
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve semester")
		}
		from = &semester.StartDate
		to = &semester.EndDate
	}

	key := statsCacheKey(req)
	if s.cache != nil {
		var cached models.AttendanceStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.IncCacheHit()
			}
			return &cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.IncCacheMiss()
		}
	}

	start := time.Now()
	counts, err := s.repo.StatusCounts(ctx, req.StudentID, req.CourseID, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to aggregate attendance")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("attendance_status_counts", time.Since(start))
	}

	stats := &models.AttendanceStats{}
	for _, row := range counts {
		switch row.Status {
		case models.StatusPresent:
			stats.Present += row.Count
		case models.StatusAbsent:
			stats.Absent += row.Count
		case models.StatusLate:
			stats.Late += row.Count
		case models.StatusExcused:
			stats.Excused += row.Count
		}
		stats.Total += row.Count
	}
	if stats.Total > 0 {
		stats.PresencePercentage = int(math.Round(float64(stats.Present) / float64(stats.Total) * 100))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, false, nil
}

// Semesters lists the known semester windows so clients can discover the
// names accepted by ComputeStats.
func (s *StatsService) Semesters(ctx context.Context) ([]models.Semester, error) {
	semesters, err := s.semesters.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list semesters")
	}
	if semesters == nil {
		semesters = []models.Semester{}
	}
	return semesters, nil
}

// InvalidateStudent drops every cached statistic for a student. Called by
// the write paths; failures are logged, never surfaced.
func (s *StatsService) InvalidateStudent(ctx context.Context, studentID string) {
	if s.cache == nil || studentID == "" {
		return
	}
	pattern := fmt.Sprintf("stats:v1:%s:*", studentID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}

func statsCacheKey(req StatsRequest) string {
	course := req.CourseID
	if course == "" {
		course = "-"
	}
	semester := req.Semester
	if semester == "" {
		semester = "-"
	}
	return fmt.Sprintf("stats:v1:%s:%s:%s", req.StudentID, course, semester)
}
