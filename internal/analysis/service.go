// Package analysis coordinates prompt building, the completion-service
// round trip, and extraction for both workloads. It is the only caller of
// the Completer; handlers and job workers go through this service.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/acidbase/abgassist/constants"
	"github.com/acidbase/abgassist/internal/bloodgas"
	"github.com/acidbase/abgassist/internal/common"
	"github.com/acidbase/abgassist/internal/extract"
	"github.com/acidbase/abgassist/internal/jobs"
	"github.com/acidbase/abgassist/internal/llm"
)

type Service struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewService(completer llm.Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{completer: completer, logger: logger}
}

// Report interprets a set of entered blood-gas values. The returned map
// carries every analysis key; extraction backfills what the model skipped.
func (s *Service) Report(ctx context.Context, in bloodgas.AnalysisInput) (map[string]string, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	s.logger.Info("analysis.report.start", "input", in.String())

	raw, err := s.completer.Complete(ctx, llm.AnalysisRequest(in))
	if err != nil {
		return nil, err
	}
	report, err := extract.Report(raw, s.logger)
	if err != nil {
		s.logger.Error("analysis.report.extract_failed", "error", err, "raw_len", len(raw))
		return nil, err
	}
	s.logger.Info("analysis.report.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return report, nil
}

// ReadValues reads measured values off a report image. Every registry
// field comes back as a {value,error,warning} entry.
func (s *Service) ReadValues(ctx context.Context, imageB64, imageMIME string) (map[string]bloodgas.MeasuredValue, error) {
	imageB64 = strings.TrimSpace(imageB64)
	if imageB64 == "" {
		return nil, common.InvalidInputError("image required")
	}
	// Tolerate clients sending a full data URL instead of bare base64.
	if strings.HasPrefix(imageB64, "data:") {
		if idx := strings.Index(imageB64, ";base64,"); idx > 5 {
			if imageMIME == "" {
				imageMIME = imageB64[5:idx]
			}
			imageB64 = imageB64[idx+len(";base64,"):]
		}
	}

	start := time.Now()
	s.logger.Info("analysis.values.start", "image_b64_len", len(imageB64))

	raw, err := s.completer.Complete(ctx, llm.ValuesRequest(imageB64, imageMIME))
	if err != nil {
		return nil, err
	}
	values, err := extract.Values(raw, s.logger)
	if err != nil {
		s.logger.Error("analysis.values.extract_failed", "error", err, "raw_len", len(raw))
		return nil, err
	}
	s.logger.Info("analysis.values.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return values, nil
}

// OCRPayload is the stored submission for an OCR job.
type OCRPayload struct {
	Image string `json:"image"`
	MIME  string `json:"mime,omitempty"`
}

// Execute implements jobs.Executor: it replays the synchronous pipeline
// for a stored submission and returns the result payload for the terminal
// write.
func (s *Service) Execute(ctx context.Context, job jobs.Job) (json.RawMessage, error) {
	switch job.Kind {
	case constants.JobKindAnalysis:
		var in bloodgas.AnalysisInput
		if err := json.Unmarshal(job.Data, &in); err != nil {
			return nil, fmt.Errorf("decode stored analysis input: %w", err)
		}
		report, err := s.Report(ctx, in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	case constants.JobKindOCR:
		var payload OCRPayload
		if err := json.Unmarshal(job.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode stored ocr payload: %w", err)
		}
		values, err := s.ReadValues(ctx, payload.Image, payload.MIME)
		if err != nil {
			return nil, err
		}
		return json.Marshal(values)
	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
