package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

type entryRepository interface {
	Insert(ctx context.Context, entry *models.AttendanceEntry) (*models.AttendanceEntry, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceEntry, error)
	FindByNaturalKey(ctx context.Context, studentID, courseID string, date time.Time) (*models.AttendanceEntry, error)
	Update(ctx context.Context, id string, update models.EntryUpdate) (*models.AttendanceEntry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.EntryFilter) ([]models.AttendanceEntry, int, error)
	DateRange(ctx context.Context, from, to time.Time, studentID, courseID string) ([]models.AttendanceEntry, error)
}

// statsInvalidator drops cached statistics after a write. Optional.
type statsInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

// LedgerService coordinates single-entry writes and reads against the
// attendance store.
type LedgerService struct {
	repo        entryRepository
	invalidator statsInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(repo entryRepository, invalidator statsInvalidator, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LedgerService{repo: repo, invalidator: invalidator, validator: validate, logger: logger}
	RegisterStatusValidation(svc.validator)
	return svc
}

// RegisterStatusValidation installs the attendance_status rule on a
// validator instance. Shared with the batch service.
func RegisterStatusValidation(v *validator.Validate) {
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
}

// RecordEntryRequest describes the payload for a single insert.
type RecordEntryRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Remarks   *string `json:"remarks"`
}

// AmendEntryRequest describes the partial-update payload. Only the mutable
// fields are representable; the natural key cannot be expressed here.
type AmendEntryRequest struct {
	Status    *string `json:"status" validate:"omitempty,attendance_status"`
	Remarks   *string `json:"remarks"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
}

// RangeQueryRequest describes a date-range query with optional narrowing.
type RangeQueryRequest struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

// ListEntriesRequest describes the paginated listing filters.
type ListEntriesRequest struct {
	StudentID string
	CourseID  string
	TeacherID string
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    *string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Record inserts a single attendance entry. Returns ErrDuplicateKey when an
// entry with the same (student, course, date) already exists.
func (s *LedgerService) Record(ctx context.Context, req RecordEntryRequest) (*models.AttendanceEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseEntryDate(req.Date)
	if err != nil {
		return nil, err
	}
	entry := &models.AttendanceEntry{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		Date:      date,
		Status:    models.AttendanceStatus(strings.ToUpper(req.Status)),
		Remarks:   req.Remarks,
	}
	stored, err := s.repo.Insert(ctx, entry)
	if err != nil {
		if appErrors.IsDuplicateKey(err) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record attendance")
	}
	s.invalidate(ctx, stored.StudentID)
	return stored, nil
}

// Amend applies a partial update to an existing entry.
func (s *LedgerService) Amend(ctx context.Context, id string, req AmendEntryRequest) (*models.AttendanceEntry, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry id required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	update := models.EntryUpdate{Remarks: req.Remarks, TeacherID: req.TeacherID}
	if req.Status != nil {
		status := models.AttendanceStatus(strings.ToUpper(*req.Status))
		update.Status = &status
	}
	if update.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no updatable field supplied")
	}
	entry, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to amend attendance")
	}
	s.invalidate(ctx, entry.StudentID)
	return entry, nil
}

// Remove deletes an entry. Deleting an unknown id is an error so caller
// mistakes surface instead of disappearing.
func (s *LedgerService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "entry id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete attendance")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete attendance")
	}
	s.invalidate(ctx, entry.StudentID)
	return nil
}

// Get fetches a single entry by id.
func (s *LedgerService) Get(ctx context.Context, id string) (*models.AttendanceEntry, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load attendance")
	}
	return entry, nil
}

// QueryRange answers inclusive date-range queries. An inverted window is an
// empty result, not an error; callers build ranges programmatically.
func (s *LedgerService) QueryRange(ctx context.Context, req RangeQueryRequest) ([]models.AttendanceEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid range")
	}
	from, err := parseEntryDate(req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseEntryDate(req.To)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return []models.AttendanceEntry{}, nil
	}
	rows, err := s.repo.DateRange(ctx, from, to, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to query attendance range")
	}
	if rows == nil {
		rows = []models.AttendanceEntry{}
	}
	return rows, nil
}

// List returns paginated entries across the indexed dimensions.
func (s *LedgerService) List(ctx context.Context, req ListEntriesRequest) ([]models.AttendanceEntry, *models.Pagination, error) {
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToUpper(*req.Status))
		if !st.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.EntryFilter{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		TeacherID: req.TeacherID,
		Date:      req.Date,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Status:    status,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

func (s *LedgerService) invalidate(ctx context.Context, studentID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateStudent(ctx, studentID)
}

func parseEntryDate(raw string) (time.Time, error) {
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}
