package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

func newEntryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func entryRows(entry models.AttendanceEntry) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "course_id", "teacher_id", "date", "status", "remarks", "created_at", "updated_at"}).
		AddRow(entry.ID, entry.StudentID, entry.CourseID, entry.TeacherID, entry.Date, entry.Status, entry.Remarks, entry.CreatedAt, entry.UpdatedAt)
}

func TestEntryRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	stored := models.AttendanceEntry{
		ID:        "entry-1",
		StudentID: "s1",
		CourseID:  "c1",
		TeacherID: "t1",
		Date:      date,
		Status:    models.StatusPresent,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_entries")).
		WillReturnRows(entryRows(stored))

	got, err := repo.Insert(context.Background(), &models.AttendanceEntry{
		StudentID: "s1", CourseID: "c1", TeacherID: "t1", Date: date, Status: models.StatusPresent,
	})
	require.NoError(t, err)
	require.Equal(t, "entry-1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	// ON CONFLICT DO NOTHING returns zero rows for the losing insert.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_entries")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Insert(context.Background(), &models.AttendanceEntry{
		StudentID: "s1", CourseID: "c1", TeacherID: "t1",
		Date:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Status: models.StatusPresent,
	})
	require.Error(t, err)
	require.True(t, appErrors.IsDuplicateKey(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryInsertLateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_entries")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Insert(context.Background(), &models.AttendanceEntry{
		StudentID: "s1", CourseID: "c1", TeacherID: "t1",
		Date:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Status: models.StatusAbsent,
	})
	require.True(t, appErrors.IsDuplicateKey(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, teacher_id, date, status, remarks, created_at, updated_at FROM attendance_entries WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryUpdatePartialFields(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	status := models.StatusLate
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	updated := models.AttendanceEntry{
		ID: "entry-1", StudentID: "s1", CourseID: "c1", TeacherID: "t1",
		Date: date, Status: status,
	}
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE attendance_entries SET status = $1, updated_at = $2 WHERE id = $3")).
		WillReturnRows(entryRows(updated))

	got, err := repo.Update(context.Background(), "entry-1", models.EntryUpdate{Status: &status})
	require.NoError(t, err)
	require.Equal(t, models.StatusLate, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	remarks := "late bus"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE attendance_entries SET")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), "missing", models.EntryUpdate{Remarks: &remarks})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_entries WHERE id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "entry-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_entries WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryDateRangeArgs(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	entry := models.AttendanceEntry{
		ID: "entry-1", StudentID: "s1", CourseID: "c1", TeacherID: "t1",
		Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Status: models.StatusPresent,
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE date >= $1 AND date <= $2 AND student_id = $3 AND course_id = $4")).
		WithArgs(from, to, "s1", "c1").
		WillReturnRows(entryRows(entry))

	rows, err := repo.DateRange(context.Background(), from, to, "s1", "c1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	entry := models.AttendanceEntry{
		ID: "entry-1", StudentID: "s1", CourseID: "c1", TeacherID: "t1",
		Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Status: models.StatusPresent,
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, teacher_id, date, status, remarks, created_at, updated_at FROM attendance_entries WHERE 1=1 AND student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnRows(entryRows(entry))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_entries WHERE 1=1 AND student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.EntryFilter{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewEntryRepository(db)
	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("PRESENT", 2).
		AddRow("ABSENT", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS cnt FROM attendance_entries")).
		WithArgs("s1", "c1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), "s1", "c1", nil, nil)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, models.StatusPresent, counts[0].Status)
	require.Equal(t, 2, counts[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}
