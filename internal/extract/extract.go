// Package extract turns unreliable completion-service text into strictly
// shaped, validated result objects. The isolation heuristic and the repair
// ladder live here and nowhere else; every call site goes through the same
// well-tested path.
package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acidbase/abgassist/internal/common"
	"github.com/acidbase/abgassist/internal/llm"
)

// Extraction failures. Per-field problems never surface as errors; these
// cover only the cases where the whole payload is unusable.
var (
	ErrNoJSON        = common.NewAppError("NO_JSON", "no JSON object found in completion output", common.ErrExtraction)
	ErrMalformedJSON = common.NewAppError("MALFORMED_JSON", "completion output is not parseable JSON", common.ErrExtraction)
)

// Placeholder fills analysis sections the model skipped.
const Placeholder = "Not performed for this analysis."

// minSectionRunes: anything shorter is treated as skipped (the model
// sometimes emits "-" or "" for sections it ignored).
const minSectionRunes = 3

// IsolateJSON locates the JSON object candidate inside raw model output.
// The model is instructed to emit bare JSON but routinely wraps it in prose
// or code fences anyway, so: strip fences, then slice from the first '{' to
// the last '}'. Returns ErrNoJSON when no such pair exists.
func IsolateJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(stripCodeFence(raw))
	start := strings.Index(trimmed, "{")
	if start < 0 {
		return "", ErrNoJSON
	}
	end := strings.LastIndex(trimmed, "}")
	if end <= start {
		return "", ErrNoJSON
	}
	return strings.TrimSpace(trimmed[start : end+1]), nil
}

// parseObject runs the bounded repair ladder: strict parse, then exactly
// one retry after removing trailing commas. Anything still unparsable is
// ErrMalformedJSON.
func parseObject(candidate string) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &m); err == nil {
		return m, nil
	}
	repaired := stripTrailingCommas(candidate)
	if err := json.Unmarshal([]byte(repaired), &m); err != nil {
		return nil, ErrMalformedJSON
	}
	return m, nil
}

// Report extracts an interpretation report: a fully keyed map over
// llm.AnalysisKeys. Missing, empty, or non-string sections are replaced
// with Placeholder rather than failing the call; one skipped section must
// not discard the sections that are present.
func Report(raw string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	candidate, err := IsolateJSON(raw)
	if err != nil {
		return nil, err
	}
	parsed, err := parseObject(candidate)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(llm.AnalysisKeys))
	var backfilled []string
	for _, key := range llm.AnalysisKeys {
		section := sectionText(parsed[key])
		if len([]rune(strings.TrimSpace(section))) < minSectionRunes {
			out[key] = Placeholder
			backfilled = append(backfilled, key)
			continue
		}
		out[key] = strings.TrimSpace(section)
	}
	if len(backfilled) > 0 {
		logger.Warn("extract.report.backfilled", "keys", strings.Join(backfilled, ","))
	}

	// Invariant gate: the assembled object must match the report schema.
	// By construction it always should; a failure here is a bug, reported
	// as malformed output rather than a panic.
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := llm.ValidateJSONAgainstSchema(llm.BuildAnalysisReportSchema(), encoded); err != nil {
		logger.Error("extract.report.schema_gate_failed", "error", err)
		return nil, ErrMalformedJSON
	}
	return out, nil
}

// sectionText renders one parsed section value as text. Strings pass
// through; scalars are printed; anything structured counts as skipped.
func sectionText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("%g", n)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return fmt.Sprintf("%t", b)
	}
	return ""
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		// A fence preceded by prose is handled by the brace slicing; only a
		// leading fence needs stripping here.
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// stripTrailingCommas removes ",}" / ",]" sequences outside string
// literals, the one malformation worth repairing.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	runes := []rune(s)
	for i, r := range runes {
		if inString {
			b.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
			b.WriteRune(r)
		case ',':
			if next := nextNonSpace(runes, i+1); next == '}' || next == ']' {
				continue // drop the trailing comma
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nextNonSpace(runes []rune, from int) rune {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return runes[i]
		}
	}
	return 0
}
