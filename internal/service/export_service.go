package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
	"github.com/noah-isme/attendance-ledger/pkg/export"
)

type rangeQuerier interface {
	QueryRange(ctx context.Context, req RangeQueryRequest) ([]models.AttendanceEntry, error)
}

// ExportService renders range-query results as downloadable reports.
type ExportService struct {
	ledger  rangeQuerier
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	maxRows int
	logger  *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(ledger rangeQuerier, csv *export.CSVExporter, pdf *export.PDFExporter, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ExportService{ledger: ledger, csv: csv, pdf: pdf, maxRows: maxRows, logger: logger}
}

// ExportRequest describes an export of a date-range report.
type ExportRequest struct {
	Range  RangeQueryRequest
	Format string
}

// ExportResult carries the rendered document.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

var exportHeaders = []string{"Date", "Student", "Course", "Teacher", "Status", "Remarks"}

// ExportRange renders the matching entries as CSV or PDF, sorted by date
// then student for a stable document.
func (s *ExportService) ExportRange(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	format := strings.ToLower(req.Format)
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, expected csv or pdf")
	}

	entries, err := s.ledger.QueryRange(ctx, req.Range)
	if err != nil {
		return nil, err
	}
	if len(entries) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export exceeds maximum row count, narrow the range")
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].StudentID < entries[j].StudentID
	})

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(entries))}
	for _, entry := range entries {
		remarks := ""
		if entry.Remarks != nil {
			remarks = *entry.Remarks
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    entry.Date.Format(models.DateLayout),
			"Student": entry.StudentID,
			"Course":  entry.CourseID,
			"Teacher": entry.TeacherID,
			"Status":  string(entry.Status),
			"Remarks": remarks,
		})
	}

	filename := fmt.Sprintf("attendance_%s_%s.%s", req.Range.From, req.Range.To, format)
	switch format {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: filename}, nil
	default:
		content, err := s.pdf.Render(dataset, "Attendance Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: filename}, nil
	}
}
