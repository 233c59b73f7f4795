package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// SemesterRepository reads the semester name to date-range mapping owned by
// the academic calendar. The ledger never writes this table.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// FindByName resolves a semester by its name. Returns sql.ErrNoRows for an
// unknown semester.
func (r *SemesterRepository) FindByName(ctx context.Context, name string) (*models.Semester, error) {
	const query = `SELECT id, name, start_date, end_date FROM semesters WHERE name = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find semester: %w", err)
	}
	return &semester, nil
}

// List returns all known semesters ordered by start date.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	const query = `SELECT id, name, start_date, end_date FROM semesters ORDER BY start_date ASC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}
