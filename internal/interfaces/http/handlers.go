package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/application/service"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/domain/period"
	"github.com/yuchialin/vat-filing/internal/reconcile"
	"github.com/yuchialin/vat-filing/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	importService   service.ImportService
	documentService service.DocumentService
	reportService   service.ReportService
	periodService   service.PeriodService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	importService service.ImportService,
	documentService service.DocumentService,
	reportService service.ReportService,
	periodService service.PeriodService,
	logger Logger,
) *Handlers {
	return &Handlers{
		importService:   importService,
		documentService: documentService,
		reportService:   reportService,
		periodService:   periodService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ImportRequest carries one uploaded feed reference.
type ImportRequest struct {
	StorageRef string `json:"storage_ref" binding:"required"`
	FileName   string `json:"file_name" binding:"required"`
	PeriodCode string `json:"period_code" binding:"required"`
	Direction  string `json:"direction"`
}

// ImportBatchRequest carries several feed references imported together.
type ImportBatchRequest struct {
	Files []ImportRequest `json:"files" binding:"required,min=1"`
}

// BatchItemResponse is one file's outcome within a batch import.
type BatchItemResponse struct {
	FileName string                   `json:"file_name"`
	Summary  *reconcile.ImportSummary `json:"summary,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// ReportResponse carries a generated declaration artifact.
type ReportResponse struct {
	Content string `json:"content"`
}

// PeriodRequest carries optional attributes for period transitions.
type PeriodRequest struct {
	FirmID string `json:"firm_id"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Import handles POST /api/v1/clients/:clientID/imports
func (h *Handlers) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid import request: "+err.Error())
		return
	}

	summary, err := h.importService.Import(c.Request.Context(), service.ImportInput{
		ClientID:   c.Param("clientID"),
		StorageRef: req.StorageRef,
		FileName:   req.FileName,
		PeriodCode: req.PeriodCode,
		Direction:  entity.Direction(req.Direction),
	})
	if err != nil {
		h.fail(c, err, "import failed")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ImportBatch handles POST /api/v1/clients/:clientID/imports/batch
func (h *Handlers) ImportBatch(c *gin.Context) {
	var req ImportBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid batch request: "+err.Error())
		return
	}

	inputs := make([]service.ImportInput, len(req.Files))
	for i, f := range req.Files {
		inputs[i] = service.ImportInput{
			ClientID:   c.Param("clientID"),
			StorageRef: f.StorageRef,
			FileName:   f.FileName,
			PeriodCode: f.PeriodCode,
			Direction:  entity.Direction(f.Direction),
		}
	}

	outcomes := h.importService.ImportBatch(c.Request.Context(), inputs)

	items := make([]BatchItemResponse, len(outcomes))
	for i, outcome := range outcomes {
		items[i] = BatchItemResponse{
			FileName: outcome.Input.FileName,
			Summary:  outcome.Summary,
		}
		if outcome.Err != nil {
			items[i].Error = outcome.Err.Error()
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// ListDocuments handles GET /api/v1/clients/:clientID/periods/:period/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	listing, err := h.documentService.ListDocuments(c.Request.Context(), c.Param("clientID"), c.Param("period"))
	if err != nil {
		h.fail(c, err, "failed to list documents")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"invoices":   listing.Invoices,
		"allowances": listing.Allowances,
	}})
}

// GenerateTxt handles POST /api/v1/clients/:clientID/periods/:period/reports/txt
func (h *Handlers) GenerateTxt(c *gin.Context) {
	content, err := h.reportService.GenerateTxt(c.Request.Context(), c.Param("clientID"), c.Param("period"))
	if err != nil {
		h.fail(c, err, "failed to generate media feed")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: ReportResponse{Content: content}})
}

// GenerateTetU handles POST /api/v1/clients/:clientID/periods/:period/reports/tetu
func (h *Handlers) GenerateTetU(c *gin.Context) {
	var cfg report.DeclarationConfig
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&cfg); err != nil {
			h.badRequest(c, "invalid declaration config: "+err.Error())
			return
		}
	}

	content, err := h.reportService.GenerateTetU(c.Request.Context(), c.Param("clientID"), c.Param("period"), cfg)
	if err != nil {
		h.fail(c, err, "failed to generate declaration")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: ReportResponse{Content: content}})
}

// ExportPeriod handles POST /api/v1/clients/:clientID/periods/:period/reports/export
func (h *Handlers) ExportPeriod(c *gin.Context) {
	var cfg report.DeclarationConfig
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&cfg); err != nil {
			h.badRequest(c, "invalid declaration config: "+err.Error())
			return
		}
	}

	result, err := h.reportService.ExportPeriod(c.Request.Context(), c.Param("clientID"), c.Param("period"), cfg)
	if err != nil {
		h.fail(c, err, "failed to export period")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// LockPeriod handles POST /api/v1/clients/:clientID/periods/:period/lock
func (h *Handlers) LockPeriod(c *gin.Context) {
	var req PeriodRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid period request: "+err.Error())
			return
		}
	}

	record, err := h.periodService.Lock(c.Request.Context(), req.FirmID, c.Param("clientID"), c.Param("period"))
	if err != nil {
		h.fail(c, err, "failed to lock period")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// UnlockPeriod handles POST /api/v1/clients/:clientID/periods/:period/unlock
func (h *Handlers) UnlockPeriod(c *gin.Context) {
	record, err := h.periodService.Unlock(c.Request.Context(), c.Param("clientID"), c.Param("period"))
	if err != nil {
		h.fail(c, err, "failed to unlock period")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// FilePeriod handles POST /api/v1/clients/:clientID/periods/:period/file
func (h *Handlers) FilePeriod(c *gin.Context) {
	record, err := h.periodService.MarkFiled(c.Request.Context(), c.Param("clientID"), c.Param("period"))
	if err != nil {
		h.fail(c, err, "failed to mark period filed")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps domain errors onto HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error, msg string) {
	h.logger.Error(msg,
		"client_id", c.Param("clientID"),
		"period", c.Param("period"),
		"error", err,
	)
	c.JSON(statusForError(err), Response{Success: false, Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, port.ErrPeriodLocked),
		errors.Is(err, port.ErrInvalidTransition),
		errors.Is(err, port.ErrDuplicateSerialCode):
		return http.StatusConflict
	case errors.Is(err, port.ErrClientNotFound),
		errors.Is(err, port.ErrInvoiceNotFound),
		errors.Is(err, port.ErrAllowanceNotFound),
		errors.Is(err, port.ErrPeriodNotFound):
		return http.StatusNotFound
	case errors.Is(err, period.ErrInvalidFormat),
		errors.Is(err, reconcile.ErrUnsupportedFileFormat),
		errors.Is(err, reconcile.ErrInvalidRow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
