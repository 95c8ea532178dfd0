package llm

import (
	"fmt"
	"strings"

	"github.com/acidbase/abgassist/internal/bloodgas"
)

// AnalysisKeys is the canonical key set of an interpretation report. Every
// response object handed to a client carries exactly these keys.
var AnalysisKeys = []string{
	"keyFindings",
	"compensationAnalysis",
	"hhAnalysis",
	"stewartAnalysis",
	"additionalCalculations",
	"differentials",
}

// BuildAnalysisSystemPrompt pins the output contract for an interpretation
// request: the exact key set, value types, and formatting rules. Pure
// string construction; cannot fail.
func BuildAnalysisSystemPrompt() string {
	parts := []string{
		"You are a clinical chemistry assistant interpreting blood gas results for a physician.",
		"Return ONLY a single JSON object. Output MUST start with { and end with }. No markdown fences, no prose before or after.",
		"The object MUST contain exactly these keys, each mapping to a markdown-formatted string: " + strings.Join(AnalysisKeys, ", ") + ".",
		"keyFindings: the dominant acid-base disturbance and any immediately dangerous values.",
		"compensationAnalysis: whether compensation is appropriate, using the expected values provided.",
		"hhAnalysis: the traditional Henderson-Hasselbalch interpretation.",
		"stewartAnalysis: the physicochemical (Stewart) interpretation, using the SID figures provided.",
		"additionalCalculations: comment on the precomputed gaps and formulae provided.",
		"differentials: a short differential diagnosis list consistent with the values and history.",
		"If a section cannot be performed from the data given, set it to the exact string \"Not performed for this analysis.\".",
		"All gas pressures are in kPa. Never convert units; interpret the numbers as given.",
		"Do not invent values that were not provided.",
	}
	return strings.Join(parts, " ")
}

// BuildAnalysisUserPrompt renders the case itself: each registry field as a
// value or an explicit "not provided", the precomputed arithmetic, sample
// type, and clinical history. Fields are never silently omitted so the
// model cannot assume a default.
func BuildAnalysisUserPrompt(in bloodgas.AnalysisInput) string {
	var b strings.Builder
	b.WriteString("Sample type: ")
	b.WriteString(in.SampleLabel())
	b.WriteString("\n\nMeasured values:\n")
	for _, f := range bloodgas.Fields {
		b.WriteString("- ")
		b.WriteString(f.Label)
		if f.Unit != "" {
			b.WriteString(" (")
			b.WriteString(f.Unit)
			b.WriteString(")")
		}
		b.WriteString(": ")
		if v, ok := in.Numeric(f.Name); ok {
			fmt.Fprintf(&b, "%g", v)
		} else {
			b.WriteString("not provided")
		}
		b.WriteString("\n")
	}

	if derived := renderDerived(in); derived != "" {
		b.WriteString("\nPrecomputed calculations (use these, do not recompute):\n")
		b.WriteString(derived)
	}

	if h := strings.TrimSpace(in.ClinicalHistory); h != "" {
		b.WriteString("\nClinical history: ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

func renderDerived(in bloodgas.AnalysisInput) string {
	var b strings.Builder

	na, hasNa := in.Numeric("sodium")
	cl, hasCl := in.Numeric("chloride")
	hco3, hasHCO3 := in.Numeric("hco3")
	k, hasK := in.Numeric("potassium")
	alb, hasAlb := in.Numeric("albumin")
	lact, hasLact := in.Numeric("lactate")
	ph, hasPH := in.Numeric("ph")

	if hasNa && hasCl && hasHCO3 {
		ag := bloodgas.AnionGap(na, cl, hco3)
		fmt.Fprintf(&b, "- Anion gap: %.1f mmol/L\n", ag)
		if hasAlb {
			fmt.Fprintf(&b, "- Albumin-corrected anion gap: %.1f mmol/L\n",
				bloodgas.AnionGapAlbuminCorrected(ag, alb))
		}
	}
	if hasHCO3 {
		expected, tol := bloodgas.WintersExpectedPCO2(hco3)
		fmt.Fprintf(&b, "- Winter's expected pCO2 (if metabolic acidosis): %.1f ± %.1f kPa\n", expected, tol)
	}
	if hasNa && hasK && hasCl && hasLact {
		sida := bloodgas.StewartSIDa(na, k, cl, lact)
		fmt.Fprintf(&b, "- Apparent SID (SIDa): %.1f mmol/L\n", sida)
		if hasHCO3 && hasAlb && hasPH {
			side := bloodgas.StewartSIDe(hco3, alb, ph)
			fmt.Fprintf(&b, "- Effective SID (SIDe): %.1f mmol/L\n", side)
			fmt.Fprintf(&b, "- Strong ion gap (SIG): %.1f mmol/L\n", bloodgas.StewartSIG(sida, side))
		}
	}
	return b.String()
}

// BuildValuesSystemPrompt pins the output contract for reading values off a
// report image: one JSON object, every registry key present, numbers or
// null, gas pressures in the units printed on the report.
func BuildValuesSystemPrompt() string {
	parts := []string{
		"You are a data extraction engine reading a photographed blood gas analyzer report.",
		"Return ONLY a single JSON object. Output MUST start with { and end with }. No markdown fences, no prose.",
		"The object MUST contain exactly these keys: " + strings.Join(bloodgas.FieldNames(), ", ") + ".",
		"Each key maps to the printed number, or null if the quantity is absent or unreadable.",
		"Report gas pressures (pco2, po2) in kPa. Copy the printed number; NEVER convert between kPa and mmHg.",
		"Copy numbers exactly as printed, including sign. Ignore reference-range arrows and flags.",
		"If nothing can be read, return an object with every key set to null.",
	}
	return strings.Join(parts, " ")
}

// BuildValuesUserPrompt is the case-specific half of an OCR request.
func BuildValuesUserPrompt() string {
	return "Read the attached blood gas report image and return the JSON object described."
}

// AnalysisRequest renders a full interpretation request.
func AnalysisRequest(in bloodgas.AnalysisInput) Request {
	return Request{
		System: BuildAnalysisSystemPrompt(),
		User:   BuildAnalysisUserPrompt(in),
	}
}

// ValuesRequest renders a full image-extraction request.
func ValuesRequest(imageB64, imageMIME string) Request {
	if imageMIME == "" {
		imageMIME = "image/jpeg"
	}
	return Request{
		System:    BuildValuesSystemPrompt(),
		User:      BuildValuesUserPrompt(),
		ImageB64:  imageB64,
		ImageMIME: imageMIME,
	}
}
