package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

// batchMetrics records per-outcome counters. Optional.
type batchMetrics interface {
	IncBatchOutcome(outcome models.BatchOutcomeStatus)
}

// BatchService ingests candidate entries with per-row insert-or-skip
// semantics. A batch never fails outright; each candidate yields exactly
// one outcome at its input index.
type BatchService struct {
	repo        entryRepository
	invalidator statsInvalidator
	metrics     batchMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	maxItems    int
}

// NewBatchService constructs the batch ingestion service.
func NewBatchService(repo entryRepository, invalidator statsInvalidator, metrics batchMetrics, validate *validator.Validate, logger *zap.Logger, maxItems int) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxItems <= 0 {
		maxItems = 500
	}
	svc := &BatchService{repo: repo, invalidator: invalidator, metrics: metrics, validator: validate, logger: logger, maxItems: maxItems}
	RegisterStatusValidation(svc.validator)
	return svc
}

// CandidateEntry is one element of a bulk submission.
type CandidateEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Remarks   *string `json:"remarks"`
}

// InsertBatch processes candidates sequentially in input order. Duplicate
// natural keys are skipped, malformed candidates are reported invalid, and
// storage failures are reported per row; none of them aborts the batch.
// The only batch-level error is caller cancellation, in which case the
// outcomes produced so far are returned alongside ctx.Err().
func (s *BatchService) InsertBatch(ctx context.Context, candidates []CandidateEntry) ([]models.BatchOutcome, models.BatchSummary, error) {
	var summary models.BatchSummary
	if len(candidates) > s.maxItems {
		return nil, summary, appErrors.Clone(appErrors.ErrValidation, "batch exceeds maximum item count")
	}

	outcomes := make([]models.BatchOutcome, 0, len(candidates))
	touched := map[string]struct{}{}
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return outcomes, summary, err
		}
		outcome := s.processCandidate(ctx, i, candidate)
		outcomes = append(outcomes, outcome)
		summary.Processed++
		switch outcome.Outcome {
		case models.BatchOutcomeCreated:
			summary.Created++
			touched[candidate.StudentID] = struct{}{}
		case models.BatchOutcomeSkipped:
			summary.Skipped++
		case models.BatchOutcomeInvalid:
			summary.Invalid++
		case models.BatchOutcomeFailed:
			summary.Failed++
		}
		if s.metrics != nil {
			s.metrics.IncBatchOutcome(outcome.Outcome)
		}
	}

	if s.invalidator != nil {
		for studentID := range touched {
			s.invalidator.InvalidateStudent(ctx, studentID)
		}
	}
	return outcomes, summary, nil
}

func (s *BatchService) processCandidate(ctx context.Context, index int, candidate CandidateEntry) models.BatchOutcome {
	if err := s.validator.Struct(candidate); err != nil {
		return models.BatchOutcome{Index: index, Outcome: models.BatchOutcomeInvalid, Reason: validationReason(err)}
	}
	date, err := parseEntryDate(candidate.Date)
	if err != nil {
		return models.BatchOutcome{Index: index, Outcome: models.BatchOutcomeInvalid, Reason: "invalid date format, expected YYYY-MM-DD"}
	}

	entry := &models.AttendanceEntry{
		StudentID: candidate.StudentID,
		CourseID:  candidate.CourseID,
		TeacherID: candidate.TeacherID,
		Date:      date,
		Status:    models.AttendanceStatus(strings.ToUpper(candidate.Status)),
		Remarks:   candidate.Remarks,
	}
	stored, err := s.repo.Insert(ctx, entry)
	if err != nil {
		if appErrors.IsDuplicateKey(err) {
			outcome := models.BatchOutcome{Index: index, Outcome: models.BatchOutcomeSkipped, Reason: "already_exists"}
			if existing, lookupErr := s.repo.FindByNaturalKey(ctx, candidate.StudentID, candidate.CourseID, date); lookupErr == nil {
				outcome.ExistingID = existing.ID
			}
			return outcome
		}
		s.logger.Warn("bulk insert row failed",
			zap.Int("index", index),
			zap.String("student_id", candidate.StudentID),
			zap.Error(err))
		return models.BatchOutcome{Index: index, Outcome: models.BatchOutcomeFailed, Reason: "storage_error"}
	}
	return models.BatchOutcome{Index: index, Outcome: models.BatchOutcomeCreated, EntryID: stored.ID}
}

func validationReason(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := strings.ToLower(fieldErrs[0].Field())
		if fieldErrs[0].Tag() == "required" {
			return "missing " + field
		}
		return "invalid " + field
	}
	return "invalid candidate"
}
