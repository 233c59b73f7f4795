package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-ledger/internal/models"
	"github.com/noah-isme/attendance-ledger/internal/service"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
	"github.com/noah-isme/attendance-ledger/pkg/response"
)

type ledgerService interface {
	Record(ctx context.Context, req service.RecordEntryRequest) (*models.AttendanceEntry, error)
	Amend(ctx context.Context, id string, req service.AmendEntryRequest) (*models.AttendanceEntry, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.AttendanceEntry, error)
	QueryRange(ctx context.Context, req service.RangeQueryRequest) ([]models.AttendanceEntry, error)
	List(ctx context.Context, req service.ListEntriesRequest) ([]models.AttendanceEntry, *models.Pagination, error)
}

type batchService interface {
	InsertBatch(ctx context.Context, candidates []service.CandidateEntry) ([]models.BatchOutcome, models.BatchSummary, error)
}

// AttendanceHandler exposes the ledger write and query endpoints.
type AttendanceHandler struct {
	ledger ledgerService
	batch  batchService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(ledger ledgerService, batch batchService) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, batch: batch}
}

// RegisterRoutes mounts the attendance endpoints on the given group.
func (h *AttendanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.POST("/bulk", h.Bulk)
	rg.GET("/range", h.Range)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Amend)
	rg.DELETE("/:id", h.Delete)
}

// Create godoc
// @Summary Record a single attendance entry
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordEntryRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	var req service.RecordEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid JSON body"))
		return
	}
	entry, err := h.ledger.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Get godoc
// @Summary Fetch an attendance entry by id
// @Tags Attendance
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	entry, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Amend godoc
// @Summary Partially update an entry's mutable fields
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body service.AmendEntryRequest true "Mutable fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [patch]
func (h *AttendanceHandler) Amend(c *gin.Context) {
	var req service.AmendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid JSON body"))
		return
	}
	entry, err := h.ledger.Amend(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Delete an attendance entry
// @Tags Attendance
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.ledger.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bulk godoc
// @Summary Bulk insert attendance entries with per-row outcomes
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body []service.CandidateEntry true "Candidates"
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) Bulk(c *gin.Context) {
	var req struct {
		Items []service.CandidateEntry `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid JSON body"))
		return
	}
	outcomes, summary, err := h.batch.InsertBatch(c.Request.Context(), req.Items)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"outcomes": outcomes, "summary": summary}
	response.JSON(c, http.StatusOK, payload, nil)
}

// List godoc
// @Summary List attendance entries across indexed dimensions
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Student ID"
// @Param courseId query string false "Course ID"
// @Param teacherId query string false "Teacher ID"
// @Param date query string false "Exact date (YYYY-MM-DD)"
// @Param dateFrom query string false "From date (YYYY-MM-DD)"
// @Param dateTo query string false "To date (YYYY-MM-DD)"
// @Param status query string false "Status (PRESENT/ABSENT/LATE/EXCUSED)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := service.ListEntriesRequest{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		TeacherID: c.Query("teacherId"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "limit", 50),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	date, err := parseDateParam(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	from, err := parseDateParam(c.Query("dateFrom"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("dateTo"))
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Date = date
	req.DateFrom = from
	req.DateTo = to

	rows, pagination, err := h.ledger.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Range godoc
// @Summary Inclusive date-range query with optional student/course filters
// @Tags Attendance
// @Produce json
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param studentId query string false "Student ID"
// @Param courseId query string false "Course ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/range [get]
func (h *AttendanceHandler) Range(c *gin.Context) {
	req := service.RangeQueryRequest{
		From:      c.Query("from"),
		To:        c.Query("to"),
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
	}
	rows, err := h.ledger.QueryRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
