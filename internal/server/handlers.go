package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/acidbase/abgassist/constants"
	"github.com/acidbase/abgassist/internal/analysis"
	"github.com/acidbase/abgassist/internal/bloodgas"
	"github.com/acidbase/abgassist/internal/common"
	"github.com/acidbase/abgassist/internal/export"
	"github.com/acidbase/abgassist/internal/jobs"
	"github.com/acidbase/abgassist/internal/llm/openai"
)

// Handler carries the service dependencies for all routes.
type Handler struct {
	svc      *analysis.Service
	runner   *jobs.Runner
	exporter *export.Service
	logger   *slog.Logger
}

func NewHandler(svc *analysis.Service, runner *jobs.Runner, exporter *export.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, runner: runner, exporter: exporter, logger: logger}
}

// writeError maps any service error to its JSON body and status. An
// upstream 429 passes through as 429 so clients can back off; every other
// upstream failure is a 502.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)

	var upstream *openai.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusTooManyRequests {
		status = http.StatusTooManyRequests
	}

	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	c.JSON(status, gin.H{"error": msg})
}

// Analyze is the synchronous interpretation path: values in, report out.
func (h *Handler) Analyze(c *gin.Context) {
	var in bloodgas.AnalysisInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	report, err := h.svc.Report(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// OCR is the synchronous image path: image in, measured values out.
func (h *Handler) OCR(c *gin.Context) {
	var req analysis.OCRPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image required"})
		return
	}
	values, err := h.svc.ReadValues(c.Request.Context(), req.Image, req.MIME)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// StartAnalysis submits an interpretation job and returns its id without
// waiting for the completion-service round trip.
func (h *Handler) StartAnalysis(c *gin.Context) {
	var in bloodgas.AnalysisInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(c, err)
		return
	}
	payload, err := json.Marshal(in)
	if err != nil {
		h.writeError(c, common.InternalError("encoding submission failed"))
		return
	}
	h.submit(c, constants.JobKindAnalysis, payload)
}

// StartOCR submits an image-extraction job.
func (h *Handler) StartOCR(c *gin.Context) {
	var req analysis.OCRPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image required"})
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		h.writeError(c, common.InternalError("encoding submission failed"))
		return
	}
	h.submit(c, constants.JobKindOCR, payload)
}

func (h *Handler) submit(c *gin.Context, kind constants.JobKind, payload json.RawMessage) {
	id, err := h.runner.Submit(c.Request.Context(), kind, payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id.String()})
}

// statusEnvelope is the poll response: status plus either the result data
// or the failure reason, never both.
type statusEnvelope struct {
	Status constants.JobStatus `json:"status"`
	Data   json.RawMessage     `json:"data,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// CheckStatus serves polling for both job kinds.
func (h *Handler) CheckStatus(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id query parameter required"})
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a valid UUID"})
		return
	}
	job, err := h.runner.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	env := statusEnvelope{Status: job.Status}
	switch job.Status {
	case constants.JobStatusFailed:
		env.Error = job.Error
	case constants.JobStatusComplete:
		env.Data = job.Data
	}
	c.JSON(http.StatusOK, env)
}

// ExportJobs streams the job history as an XLSX attachment.
func (h *Handler) ExportJobs(c *gin.Context) {
	data, err := h.exporter.JobsXLSX(c.Request.Context(), 500)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
