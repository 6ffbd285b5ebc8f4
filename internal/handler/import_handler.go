package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smart-student/edu-import-api/internal/models"
	"github.com/smart-student/edu-import-api/internal/service"
	appErrors "github.com/smart-student/edu-import-api/pkg/errors"
	"github.com/smart-student/edu-import-api/pkg/response"
)

type importService interface {
	StartImport(ctx context.Context, req service.StartImportRequest) (*models.ImportRun, error)
	GetRun(ctx context.Context, id string) (*models.ImportRun, error)
	CancelRun(ctx context.Context, id string) (*models.ImportRun, error)
	ErrorReportCSV(ctx context.Context, id string) ([]byte, error)
	SummaryPDF(ctx context.Context, id string) ([]byte, error)
	DeleteGradesByYear(ctx context.Context, year int) (int64, error)
	DeleteAttendanceByYear(ctx context.Context, year int) (int64, error)
	Counters(ctx context.Context) (*models.RecordCounters, error)
}

// ImportHandler exposes the bulk import endpoints.
type ImportHandler struct {
	imports importService
}

// NewImportHandler constructs handler.
func NewImportHandler(imports importService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// ImportGrades godoc
// @Summary Upload a grades file
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param year formData int true "Academic year"
// @Param file formData file true "CSV or XLSX file"
// @Success 202 {object} response.Envelope
// @Router /imports/grades [post]
func (h *ImportHandler) ImportGrades(c *gin.Context) {
	h.startImport(c, models.RunKindGrades)
}

// ImportAttendance godoc
// @Summary Upload an attendance file
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param year formData int true "Academic year"
// @Param file formData file true "CSV or XLSX file"
// @Success 202 {object} response.Envelope
// @Router /imports/attendance [post]
func (h *ImportHandler) ImportAttendance(c *gin.Context) {
	h.startImport(c, models.RunKindAttendance)
}

func (h *ImportHandler) startImport(c *gin.Context, kind models.RunKind) {
	year, err := strconv.Atoi(c.PostForm("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year form field required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file form field required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, err)
		return
	}

	run, err := h.imports.StartImport(c.Request.Context(), service.StartImportRequest{
		Kind:     kind,
		Year:     year,
		FileName: fileHeader.Filename,
		Content:  content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if run.Progress.Phase.Terminal() {
		response.JSON(c, http.StatusOK, run, nil)
		return
	}
	response.Accepted(c, run)
}

// GetRun godoc
// @Summary Import run status
// @Tags Imports
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) GetRun(c *gin.Context) {
	run, err := h.imports.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// CancelRun godoc
// @Summary Cancel a running import
// @Tags Imports
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /imports/{id}/cancel [post]
func (h *ImportHandler) CancelRun(c *gin.Context) {
	run, err := h.imports.CancelRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ErrorReport godoc
// @Summary Download a run's row errors as CSV
// @Tags Imports
// @Produce text/csv
// @Param id path string true "Run ID"
// @Success 200 {string} string "CSV content"
// @Router /imports/{id}/errors.csv [get]
func (h *ImportHandler) ErrorReport(c *gin.Context) {
	id := c.Param("id")
	report, err := h.imports.ErrorReportCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "errors-"+id+".csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", report)
}

// Summary godoc
// @Summary Download a run's summary as PDF
// @Tags Imports
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Success 200 {string} string "PDF content"
// @Router /imports/{id}/summary.pdf [get]
func (h *ImportHandler) Summary(c *gin.Context) {
	id := c.Param("id")
	pdf, err := h.imports.SummaryPDF(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "summary-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// DeleteGrades godoc
// @Summary Delete grade and activity records for a year
// @Tags Records
// @Produce json
// @Param year query int true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /records/grades [delete]
func (h *ImportHandler) DeleteGrades(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year query parameter required"))
		return
	}

	deleted, err := h.imports.DeleteGradesByYear(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted, "year": year}, nil)
}

// DeleteAttendance godoc
// @Summary Delete attendance records for a year
// @Tags Records
// @Produce json
// @Param year query int true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /records/attendance [delete]
func (h *ImportHandler) DeleteAttendance(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year query parameter required"))
		return
	}

	deleted, err := h.imports.DeleteAttendanceByYear(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted, "year": year}, nil)
}

// Counters godoc
// @Summary Per-year record counters
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /records/counters [get]
func (h *ImportHandler) Counters(c *gin.Context) {
	counters, err := h.imports.Counters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counters, nil)
}
