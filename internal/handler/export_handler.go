package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-ledger/internal/service"
	"github.com/noah-isme/attendance-ledger/pkg/response"
)

type exportService interface {
	ExportRange(ctx context.Context, req service.ExportRequest) (*service.ExportResult, error)
}

// ExportHandler serves range-report downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// RegisterRoutes mounts the export endpoint on the given group.
func (h *ExportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export", h.Export)
}

// Export godoc
// @Summary Export a date-range report as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param studentId query string false "Student ID"
// @Param courseId query string false "Course ID"
// @Param format query string true "csv or pdf"
// @Success 200
// @Router /attendance/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	req := service.ExportRequest{
		Range: service.RangeQueryRequest{
			From:      c.Query("from"),
			To:        c.Query("to"),
			StudentID: c.Query("studentId"),
			CourseID:  c.Query("courseId"),
		},
		Format: c.DefaultQuery("format", "csv"),
	}
	result, err := h.exports.ExportRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
