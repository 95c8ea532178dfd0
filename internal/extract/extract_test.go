package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/acidbase/abgassist/internal/llm"
)

const fullReport = `{
  "keyFindings": "Severe acute respiratory acidosis.",
  "compensationAnalysis": "No metabolic compensation yet, consistent with an acute process.",
  "hhAnalysis": "pH 7.15 with pCO2 8.9 kPa fits the Henderson-Hasselbalch prediction.",
  "stewartAnalysis": "Strong ion difference is preserved.",
  "additionalCalculations": "Anion gap 12 mmol/L, within normal limits.",
  "differentials": "Hypoventilation from sedation, COPD exacerbation, or neuromuscular weakness."
}`

func TestIsolateJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "leading fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence without language", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose then fence", in: "Sure! Here is the analysis:\n```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose both sides", in: "Result: {\"a\":1} hope that helps", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsolateJSON(tt.in)
			if err != nil {
				t.Fatalf("IsolateJSON: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsolateJSONNoObject(t *testing.T) {
	for _, in := range []string{"", "I cannot analyze this.", "```json\n```", "}{"} {
		if _, err := IsolateJSON(in); !errors.Is(err, ErrNoJSON) {
			t.Fatalf("IsolateJSON(%q): got %v, want ErrNoJSON", in, err)
		}
	}
}

func TestReportFullyKeyed(t *testing.T) {
	out, err := Report("Sure! Here you go:\n```json\n"+fullReport+"\n```", nil)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(out) != len(llm.AnalysisKeys) {
		t.Fatalf("got %d sections, want %d", len(out), len(llm.AnalysisKeys))
	}
	for _, key := range llm.AnalysisKeys {
		section, ok := out[key]
		if !ok {
			t.Fatalf("missing section %q", key)
		}
		if strings.TrimSpace(section) == "" {
			t.Fatalf("empty section %q", key)
		}
	}
	if out["keyFindings"] != "Severe acute respiratory acidosis." {
		t.Fatalf("keyFindings altered: %q", out["keyFindings"])
	}
}

func TestReportBackfillsSkippedSections(t *testing.T) {
	raw := `{
		"keyFindings": "Acute respiratory acidosis.",
		"compensationAnalysis": "-",
		"hhAnalysis": ""
	}`
	out, err := Report(raw, nil)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if out["keyFindings"] != "Acute respiratory acidosis." {
		t.Fatalf("present section lost: %q", out["keyFindings"])
	}
	for _, key := range []string{"compensationAnalysis", "hhAnalysis", "stewartAnalysis", "additionalCalculations", "differentials"} {
		if out[key] != Placeholder {
			t.Fatalf("section %q = %q, want placeholder", key, out[key])
		}
	}
}

func TestReportTrailingCommaRepair(t *testing.T) {
	raw := `{
		"keyFindings": "Metabolic alkalosis with respiratory compensation.",
	}`
	out, err := Report(raw, nil)
	if err != nil {
		t.Fatalf("Report after repair: %v", err)
	}
	if out["keyFindings"] != "Metabolic alkalosis with respiratory compensation." {
		t.Fatalf("keyFindings = %q", out["keyFindings"])
	}
}

func TestReportMalformed(t *testing.T) {
	// Braces present but the content is not JSON and not repairable.
	if _, err := Report(`{ keyFindings: not json at all `+"}", nil); !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("got %v, want ErrMalformedJSON", err)
	}
}

func TestReportStructuredSectionsTreatedAsSkipped(t *testing.T) {
	raw := `{"keyFindings": {"nested": true}, "differentials": ["a", "b"]}`
	out, err := Report(raw, nil)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if out["keyFindings"] != Placeholder || out["differentials"] != Placeholder {
		t.Fatalf("structured sections not backfilled: %q / %q", out["keyFindings"], out["differentials"])
	}
}

func TestReportIdempotent(t *testing.T) {
	first, err := Report(fullReport, nil)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := Report(fullReport, nil)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	for _, key := range llm.AnalysisKeys {
		if first[key] != second[key] {
			t.Fatalf("section %q not stable: %q vs %q", key, first[key], second[key])
		}
	}
}

func TestStripTrailingCommasKeepsStringLiterals(t *testing.T) {
	in := `{"a": "x,}", "b": [1,2,],}`
	got := stripTrailingCommas(in)
	want := `{"a": "x,}", "b": [1,2]}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
