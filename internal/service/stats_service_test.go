package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

type fakeStatusCounter struct {
	counts      []models.StatusCount
	lastStudent string
	lastCourse  string
	lastFrom    *time.Time
	lastTo      *time.Time
	err         error
}

func (f *fakeStatusCounter) StatusCounts(ctx context.Context, studentID, courseID string, from, to *time.Time) ([]models.StatusCount, error) {
	f.lastStudent = studentID
	f.lastCourse = courseID
	f.lastFrom = from
	f.lastTo = to
	return f.counts, f.err
}

type fakeSemesterCalendar struct {
	semesters map[string]*models.Semester
}

func (f *fakeSemesterCalendar) FindByName(ctx context.Context, name string) (*models.Semester, error) {
	if semester, ok := f.semesters[name]; ok {
		return semester, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSemesterCalendar) List(ctx context.Context) ([]models.Semester, error) {
	var all []models.Semester
	for _, semester := range f.semesters {
		all = append(all, *semester)
	}
	return all, nil
}

type fakeStatsCache struct {
	store   map[string][]byte
	deleted []string
}

func (f *fakeStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (f *fakeStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.store == nil {
		f.store = map[string][]byte{}
	}
	f.store[key] = nil
	return nil
}

func (f *fakeStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	f.deleted = append(f.deleted, pattern)
	return nil
}

func newStats(counter *fakeStatusCounter, calendar *fakeSemesterCalendar) *StatsService {
	if calendar == nil {
		calendar = &fakeSemesterCalendar{}
	}
	return NewStatsService(counter, calendar, nil, nil, time.Minute, zap.NewNop())
}

func TestComputeStatsCorrectness(t *testing.T) {
	// [P, P, A, L, E] => total 5, presence 40%.
	counter := &fakeStatusCounter{counts: []models.StatusCount{
		{Status: models.StatusPresent, Count: 2},
		{Status: models.StatusAbsent, Count: 1},
		{Status: models.StatusLate, Count: 1},
		{Status: models.StatusExcused, Count: 1},
	}}
	svc := newStats(counter, nil)

	stats, cacheHit, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Present)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 1, stats.Excused)
	assert.Equal(t, 40, stats.PresencePercentage)
	assert.Equal(t, "s1", counter.lastStudent)
	assert.Equal(t, "c1", counter.lastCourse)
}

func TestComputeStatsFiveDayScenario(t *testing.T) {
	// Statuses [P, P, A, P, L] over five days => 60%.
	counter := &fakeStatusCounter{counts: []models.StatusCount{
		{Status: models.StatusPresent, Count: 3},
		{Status: models.StatusAbsent, Count: 1},
		{Status: models.StatusLate, Count: 1},
	}}
	svc := newStats(counter, nil)

	stats, _, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Present)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 0, stats.Excused)
	assert.Equal(t, 60, stats.PresencePercentage)
}

func TestComputeStatsZeroEntries(t *testing.T) {
	svc := newStats(&fakeStatusCounter{}, nil)

	stats, _, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, &models.AttendanceStats{}, stats)
	assert.Equal(t, 0, stats.PresencePercentage)
}

func TestComputeStatsSemesterWindow(t *testing.T) {
	counter := &fakeStatusCounter{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	calendar := &fakeSemesterCalendar{semesters: map[string]*models.Semester{
		"2024-odd": {ID: "sem-1", Name: "2024-odd", StartDate: start, EndDate: end},
	}}
	svc := newStats(counter, calendar)

	_, _, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1", Semester: "2024-odd"})
	require.NoError(t, err)
	require.NotNil(t, counter.lastFrom)
	require.NotNil(t, counter.lastTo)
	assert.True(t, counter.lastFrom.Equal(start))
	assert.True(t, counter.lastTo.Equal(end))
}

func TestComputeStatsUnknownSemester(t *testing.T) {
	svc := newStats(&fakeStatusCounter{}, &fakeSemesterCalendar{})

	_, _, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1", Semester: "nope"})
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestComputeStatsRequiresStudent(t *testing.T) {
	svc := newStats(&fakeStatusCounter{}, nil)

	_, _, err := svc.ComputeStats(context.Background(), StatsRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSemestersListing(t *testing.T) {
	calendar := &fakeSemesterCalendar{semesters: map[string]*models.Semester{
		"2024-odd": {ID: "sem-1", Name: "2024-odd"},
	}}
	svc := newStats(&fakeStatusCounter{}, calendar)

	semesters, err := svc.Semesters(context.Background())
	require.NoError(t, err)
	require.Len(t, semesters, 1)
	assert.Equal(t, "2024-odd", semesters[0].Name)

	// An empty calendar yields an empty slice, not nil.
	empty, err := newStats(&fakeStatusCounter{}, nil).Semesters(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestComputeStatsCacheWriteAndInvalidation(t *testing.T) {
	counter := &fakeStatusCounter{counts: []models.StatusCount{{Status: models.StatusPresent, Count: 1}}}
	cache := &fakeStatsCache{}
	svc := NewStatsService(counter, &fakeSemesterCalendar{}, cache, nil, time.Minute, zap.NewNop())

	_, cacheHit, err := svc.ComputeStats(context.Background(), StatsRequest{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Contains(t, cache.store, "stats:v1:s1:c1:-")

	svc.InvalidateStudent(context.Background(), "s1")
	require.Len(t, cache.deleted, 1)
	assert.Equal(t, "stats:v1:s1:*", cache.deleted[0])
}
