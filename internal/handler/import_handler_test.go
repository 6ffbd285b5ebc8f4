package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-student/edu-import-api/internal/models"
	"github.com/smart-student/edu-import-api/internal/service"
	appErrors "github.com/smart-student/edu-import-api/pkg/errors"
)

type importServiceMock struct {
	startReq   service.StartImportRequest
	startResp  *models.ImportRun
	startErr   error
	getResp    *models.ImportRun
	getErr     error
	cancelResp *models.ImportRun
	cancelErr  error
	csv        []byte
	pdf        []byte
	deleted    int64
	deleteErr  error
	counters   *models.RecordCounters
}

func (m *importServiceMock) StartImport(_ context.Context, req service.StartImportRequest) (*models.ImportRun, error) {
	m.startReq = req
	return m.startResp, m.startErr
}

func (m *importServiceMock) GetRun(context.Context, string) (*models.ImportRun, error) {
	return m.getResp, m.getErr
}

func (m *importServiceMock) CancelRun(context.Context, string) (*models.ImportRun, error) {
	return m.cancelResp, m.cancelErr
}

func (m *importServiceMock) ErrorReportCSV(context.Context, string) ([]byte, error) {
	return m.csv, nil
}

func (m *importServiceMock) SummaryPDF(context.Context, string) ([]byte, error) {
	return m.pdf, nil
}

func (m *importServiceMock) DeleteGradesByYear(context.Context, int) (int64, error) {
	return m.deleted, m.deleteErr
}

func (m *importServiceMock) DeleteAttendanceByYear(context.Context, int) (int64, error) {
	return m.deleted, m.deleteErr
}

func (m *importServiceMock) Counters(context.Context) (*models.RecordCounters, error) {
	return m.counters, nil
}

func newGinContext(method, path string, body []byte, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func multipartUpload(t *testing.T, year, fileName, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if year != "" {
		require.NoError(t, writer.WriteField("year", year))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes(), writer.FormDataContentType()
}

func TestImportHandlerImportGradesAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{
		startResp: &models.ImportRun{ID: "run-1", Kind: models.RunKindGrades, Progress: models.RunProgress{Phase: models.PhasePending}},
	}
	handler := NewImportHandler(mockSvc)

	body, contentType := multipartUpload(t, "2024", "notas.csv", "rut;nota\n1;70\n")
	c, w := newGinContext(http.MethodPost, "/imports/grades", body, contentType)

	handler.ImportGrades(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.RunKindGrades, mockSvc.startReq.Kind)
	assert.Equal(t, 2024, mockSvc.startReq.Year)
	assert.Equal(t, "notas.csv", mockSvc.startReq.FileName)
	assert.NotEmpty(t, mockSvc.startReq.Content)
}

func TestImportHandlerImportGradesSyncCompleted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{
		startResp: &models.ImportRun{ID: "run-1", Progress: models.RunProgress{Phase: models.PhaseCompleted}},
	}
	handler := NewImportHandler(mockSvc)

	body, contentType := multipartUpload(t, "2024", "notas.csv", "rut;nota\n1;70\n")
	c, w := newGinContext(http.MethodPost, "/imports/grades", body, contentType)

	handler.ImportGrades(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestImportHandlerImportAttendanceMissingYear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{})

	body, contentType := multipartUpload(t, "", "asistencia.csv", "rut;estado\n1;p\n")
	c, w := newGinContext(http.MethodPost, "/imports/attendance", body, contentType)

	handler.ImportAttendance(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerImportGradesMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{})

	body, contentType := multipartUpload(t, "2024", "", "")
	c, w := newGinContext(http.MethodPost, "/imports/grades", body, contentType)

	handler.ImportGrades(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerImportGradesConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{startErr: appErrors.ErrImportRunning}
	handler := NewImportHandler(mockSvc)

	body, contentType := multipartUpload(t, "2024", "notas.csv", "rut;nota\n1;70\n")
	c, w := newGinContext(http.MethodPost, "/imports/grades", body, contentType)

	handler.ImportGrades(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestImportHandlerGetRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{
		getResp: &models.ImportRun{ID: "run-1", Progress: models.RunProgress{Phase: models.PhaseProcessing, Current: 500, Total: 1000}},
	}
	handler := NewImportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/imports/run-1", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.GetRun(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data.ID)
	assert.Equal(t, 500, envelope.Data.Progress.Current)
}

func TestImportHandlerGetRunNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{getErr: appErrors.ErrRunNotFound})

	c, w := newGinContext(http.MethodGet, "/imports/missing", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.GetRun(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportHandlerCancelRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{
		cancelResp: &models.ImportRun{ID: "run-1", Progress: models.RunProgress{Phase: models.PhaseProcessing}},
	}
	handler := NewImportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/imports/run-1/cancel", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.CancelRun(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestImportHandlerCancelFinishedRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{cancelErr: appErrors.ErrRunNotCancellable})

	c, w := newGinContext(http.MethodPost, "/imports/run-1/cancel", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.CancelRun(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestImportHandlerErrorReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{csv: []byte("row,reason\n4,student not found\n")})

	c, w := newGinContext(http.MethodGet, "/imports/run-1/errors.csv", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.ErrorReport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "errors-run-1.csv")
	assert.Contains(t, w.Body.String(), "student not found")
}

func TestImportHandlerSummaryPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{pdf: []byte("%PDF-1.3")})

	c, w := newGinContext(http.MethodGet, "/imports/run-1/summary.pdf", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestImportHandlerDeleteGrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{deleted: 42}
	handler := NewImportHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/records/grades?year=2023", nil, "")

	handler.DeleteGrades(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "42")
}

func TestImportHandlerDeleteGradesMissingYear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewImportHandler(&importServiceMock{})

	c, w := newGinContext(http.MethodDelete, "/records/grades", nil, "")

	handler.DeleteGrades(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerDeleteAttendance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{deleted: 7}
	handler := NewImportHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/records/attendance?year=2023", nil, "")

	handler.DeleteAttendance(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "7")
}

func TestImportHandlerCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &importServiceMock{counters: &models.RecordCounters{
		TotalGrades: 30,
		Years:       []models.YearCounters{{Year: 2024, Grades: 30}},
	}}
	handler := NewImportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/records/counters", nil, "")

	handler.Counters(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2024")
}
