package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"encoding/json"

	"github.com/google/uuid"

	"github.com/acidbase/abgassist/internal/common"
	"github.com/acidbase/abgassist/internal/llm"
)

// UpstreamError is returned when the completion service answers with a
// non-success status. StatusCode is the provider's HTTP status; Body is the
// (truncated) response payload for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion service status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return common.ErrUpstream }

// ErrEmptyCompletion is returned on a success status carrying no usable
// text payload.
var ErrEmptyCompletion = common.NewAppError("EMPTY_COMPLETION",
	"completion service returned no usable text", common.ErrUpstream)

const maxErrorBodyBytes = 2048

// Complete implements llm.Completer against the chat/completions endpoint.
// One outbound call per invocation; no retries, no caching. A transport
// failure (including the client timeout) is reported as an upstream error
// so callers treat it exactly like a 5xx.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", common.NewAppError("CONFIG_ERROR", "completion service credential is not configured", common.ErrConfig)
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"has_image", req.HasImage(),
		"user_len", len(req.User),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxOutputTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": req.System},
			{"role": "user", "content": userContent(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		if status != 0 {
			c.log.Error("llm.complete.upstream_status",
				"req_id", rid, "status", status,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return "", &UpstreamError{StatusCode: status, Body: truncate(string(raw), maxErrorBodyBytes)}
		}
		c.log.Error("llm.complete.transport_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", &UpstreamError{StatusCode: 0, Body: err.Error()}
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode completion response: %w", errors.Join(err, common.ErrUpstream))
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		c.log.Error("llm.complete.empty",
			"req_id", rid, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// userContent renders the user message: a plain string for text-only calls,
// the multi-part form with an embedded data URL for vision calls.
func userContent(req llm.Request) any {
	if !req.HasImage() {
		return req.User
	}
	dataURL := "data:" + req.ImageMIME + ";base64," + req.ImageB64
	return []map[string]any{
		{"type": "text", "text": req.User},
		{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
