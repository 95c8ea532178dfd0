package llm

import "github.com/acidbase/abgassist/internal/bloodgas"

// BuildAnalysisReportSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map for the interpretation report object. Used locally as an
// invariant gate after extraction has backfilled missing sections.
func BuildAnalysisReportSchema() map[string]any {
	props := make(map[string]any, len(AnalysisKeys))
	for _, k := range AnalysisKeys {
		props[k] = map[string]any{"type": "string", "minLength": 1}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             append([]string(nil), AnalysisKeys...),
	}
}

// BuildMeasuredValuesSchema returns the schema for the raw values object the
// model produces in OCR mode: every registry key, number or null. The model
// frequently decorates numbers with symbols, so strings are tolerated here
// and normalized downstream.
func BuildMeasuredValuesSchema() map[string]any {
	props := make(map[string]any, len(bloodgas.Fields))
	for _, f := range bloodgas.Fields {
		props[f.Name] = map[string]any{"type": []string{"number", "string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
}
