package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

const entryColumns = "id, student_id, course_id, teacher_id, date, status, remarks, created_at, updated_at"

// EntryRepository handles persistence for attendance entries. A unique index
// over (student_id, course_id, date) backs the natural-key invariant; the
// index, not application code, is the arbiter for racing inserts.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository constructs the repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Insert persists a new entry. Exactly one of any set of concurrent inserts
// for the same natural key succeeds; the rest observe ErrDuplicateKey.
func (r *EntryRepository) Insert(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error) {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `INSERT INTO attendance_entries (id, student_id, course_id, teacher_id, date, status, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, course_id, date) DO NOTHING
RETURNING ` + entryColumns
	var stored models.AttendanceEntry
	err := r.db.GetContext(ctx, &stored, query,
		entry.ID, entry.StudentID, entry.CourseID, entry.TeacherID, entry.Date, entry.Status, entry.Remarks, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert attendance entry: %w", err)
	}
	return &stored, nil
}

// FindByID fetches a single entry. Returns sql.ErrNoRows when absent.
func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.AttendanceEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_entries WHERE id = $1", entryColumns)
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find attendance entry: %w", err)
	}
	return &entry, nil
}

// FindByNaturalKey fetches the entry holding the given natural key, if any.
func (r *EntryRepository) FindByNaturalKey(ctx context.Context, studentID, courseID string, date time.Time) (*models.AttendanceEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_entries WHERE student_id = $1 AND course_id = $2 AND date = $3", entryColumns)
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, query, studentID, courseID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find attendance entry by key: %w", err)
	}
	return &entry, nil
}

// Update applies a partial update to the mutable fields. The natural key
// columns are not part of the SET clause under any input.
func (r *EntryRepository) Update(ctx context.Context, id string, update models.EntryUpdate) (*models.AttendanceEntry, error) {
	sets := []string{}
	args := []interface{}{}
	if update.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *update.Status)
	}
	if update.Remarks != nil {
		sets = append(sets, fmt.Sprintf("remarks = $%d", len(args)+1))
		args = append(args, *update.Remarks)
	}
	if update.TeacherID != nil {
		sets = append(sets, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, *update.TeacherID)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE attendance_entries SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), entryColumns)
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update attendance entry: %w", err)
	}
	return &entry, nil
}

// Delete removes an entry. Returns sql.ErrNoRows when the id is unknown so
// callers can surface the mistake instead of silently ignoring it.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM attendance_entries WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attendance entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attendance entry: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns entries matching the provided filter with pagination. The
// dimension filters map onto the secondary indexes created by the schema.
func (r *EntryRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.AttendanceEntry, int, error) {
	where, args := buildEntryWhere(filter)

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"date":       "date",
		"status":     "status",
		"student_id": "student_id",
		"course_id":  "course_id",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE %s
ORDER BY %s %s LIMIT %d OFFSET %d`, entryColumns, where, sortColumn, order, size, offset)

	var rows []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_entries WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance entries: %w", err)
	}
	return rows, total, nil
}

// DateRange returns entries with from <= date <= to, optionally narrowed by
// student and course. When studentID is set, the planner narrows via the
// by-student index and the remaining predicates act as residual filters.
// Result order is unspecified.
func (r *EntryRepository) DateRange(ctx context.Context, from, to time.Time, studentID, courseID string) ([]models.AttendanceEntry, error) {
	where := []string{"date >= $1", "date <= $2"}
	args := []interface{}{from, to}
	if studentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, studentID)
	}
	if courseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, courseID)
	}
	query := fmt.Sprintf("SELECT %s FROM attendance_entries WHERE %s", entryColumns, strings.Join(where, " AND "))
	var rows []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("range query attendance entries: %w", err)
	}
	return rows, nil
}

// StatusCounts aggregates entry counts per status for a student, optionally
// scoped to a course and to an inclusive date window.
func (r *EntryRepository) StatusCounts(ctx context.Context, studentID, courseID string, from, to *time.Time) ([]models.StatusCount, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if courseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, courseID)
	}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT status, COUNT(*) AS cnt FROM attendance_entries
WHERE %s GROUP BY status`, strings.Join(where, " AND "))
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance status counts: %w", err)
	}
	return rows, nil
}

func buildEntryWhere(filter models.EntryFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	return strings.Join(where, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
