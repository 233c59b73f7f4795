package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-ledger/internal/models"
	"github.com/noah-isme/attendance-ledger/internal/service"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

type statsServiceMock struct {
	stats     *models.AttendanceStats
	semesters []models.Semester
	cacheHit  bool
	err       error
	lastReq   service.StatsRequest
}

func (m *statsServiceMock) ComputeStats(ctx context.Context, req service.StatsRequest) (*models.AttendanceStats, bool, error) {
	m.lastReq = req
	return m.stats, m.cacheHit, m.err
}

func (m *statsServiceMock) Semesters(ctx context.Context) ([]models.Semester, error) {
	return m.semesters, m.err
}

func TestStatsHandlerStudentStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{
		stats:    &models.AttendanceStats{Total: 5, Present: 2, Absent: 1, Late: 1, Excused: 1, PresencePercentage: 40},
		cacheHit: true,
	}
	handler := NewStatsHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/students/s1/stats?courseId=c1&semester=2024-odd", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}

	handler.StudentStats(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "s1", mock.lastReq.StudentID)
	require.Equal(t, "c1", mock.lastReq.CourseID)
	require.Equal(t, "2024-odd", mock.lastReq.Semester)

	var envelope struct {
		Data models.AttendanceStats `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 40, envelope.Data.PresencePercentage)
	require.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestStatsHandlerUnknownSemester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "unknown semester")}
	handler := NewStatsHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/students/s1/stats?semester=nope", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}

	handler.StudentStats(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsHandlerSemesters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{semesters: []models.Semester{{ID: "sem-1", Name: "2024-odd"}}}
	handler := NewStatsHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/semesters", nil)
	c.Request = req

	handler.Semesters(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.Semester `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "2024-odd", envelope.Data[0].Name)
}
