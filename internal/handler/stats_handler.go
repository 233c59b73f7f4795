package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-ledger/internal/models"
	"github.com/noah-isme/attendance-ledger/internal/service"
	"github.com/noah-isme/attendance-ledger/pkg/response"
)

type statsService interface {
	ComputeStats(ctx context.Context, req service.StatsRequest) (*models.AttendanceStats, bool, error)
	Semesters(ctx context.Context) ([]models.Semester, error)
}

// StatsHandler exposes the on-demand statistics endpoint.
type StatsHandler struct {
	stats statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(stats statsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RegisterRoutes mounts the statistics endpoint on the given group.
func (h *StatsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/students/:studentId/stats", h.StudentStats)
	rg.GET("/semesters", h.Semesters)
}

// StudentStats godoc
// @Summary Presence statistics for a student
// @Tags Statistics
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId query string false "Course ID"
// @Param semester query string false "Semester name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/students/{studentId}/stats [get]
func (h *StatsHandler) StudentStats(c *gin.Context) {
	req := service.StatsRequest{
		StudentID: c.Param("studentId"),
		CourseID:  c.Query("courseId"),
		Semester:  c.Query("semester"),
	}

	start := time.Now()
	stats, cacheHit, err := h.stats.ComputeStats(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, stats, nil, meta)
}

// Semesters godoc
// @Summary List semester windows usable in statistics queries
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/semesters [get]
func (h *StatsHandler) Semesters(c *gin.Context) {
	semesters, err := h.stats.Semesters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}
