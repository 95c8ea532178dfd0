package bloodgas

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/acidbase/abgassist/internal/common"
)

// MeasuredValue is the per-field result shape handed to clients.
// Value is nil exactly when Error is set; Warning is informational and may
// accompany a non-nil Value (e.g. after a unit reinterpretation).
type MeasuredValue struct {
	Value   *float64 `json:"value"`
	Error   *string  `json:"error"`
	Warning *string  `json:"warning"`
}

// OK wraps a successfully read value.
func OK(v float64) MeasuredValue {
	return MeasuredValue{Value: &v}
}

// Failed marks a field unreadable or implausible.
func Failed(reason string) MeasuredValue {
	return MeasuredValue{Error: &reason}
}

// WithWarning attaches a non-fatal note to a value.
func (m MeasuredValue) WithWarning(note string) MeasuredValue {
	m.Warning = &note
	return m
}

// Field describes one physiological quantity the service understands.
type Field struct {
	Name     string  // canonical JSON key, lower case
	Label    string  // display label used in prompts and error messages
	Unit     string
	Min, Max float64 // plausible physiological bounds, inclusive
	Pressure bool    // gas pressure in kPa, eligible for the mmHg reinterpretation
}

// Fields is the canonical registry, one entry per supported quantity.
// Bounds are deliberately generous: they reject transcription garbage, not
// borderline pathology.
var Fields = []Field{
	{Name: "ph", Label: "pH", Unit: "", Min: 6.0, Max: 8.0},
	{Name: "pco2", Label: "pCO2", Unit: "kPa", Min: 0.5, Max: 30, Pressure: true},
	{Name: "po2", Label: "pO2", Unit: "kPa", Min: 0.5, Max: 80, Pressure: true},
	{Name: "hco3", Label: "HCO3", Unit: "mmol/L", Min: 1, Max: 60},
	{Name: "sodium", Label: "Sodium", Unit: "mmol/L", Min: 100, Max: 180},
	{Name: "potassium", Label: "Potassium", Unit: "mmol/L", Min: 1, Max: 10},
	{Name: "chloride", Label: "Chloride", Unit: "mmol/L", Min: 70, Max: 140},
	{Name: "albumin", Label: "Albumin", Unit: "g/L", Min: 5, Max: 60},
	{Name: "lactate", Label: "Lactate", Unit: "mmol/L", Min: 0, Max: 30},
	{Name: "glucose", Label: "Glucose", Unit: "mmol/L", Min: 0.5, Max: 50},
	{Name: "calcium", Label: "Ionized calcium", Unit: "mmol/L", Min: 0.2, Max: 4},
	{Name: "hemoglobin", Label: "Hemoglobin", Unit: "g/L", Min: 30, Max: 250},
	{Name: "base_excess", Label: "Base excess", Unit: "mmol/L", Min: -30, Max: 30},
	{Name: "fio2", Label: "FiO2", Unit: "fraction", Min: 0.15, Max: 1.0},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		idx[f.Name] = f
	}
	return idx
}()

// FieldByName looks up a registry entry by canonical key.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldIndex[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// FieldNames returns the canonical keys in registry order.
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// InRange checks a parsed number against the field bounds.
func (f Field) InRange(v float64) bool {
	return v >= f.Min && v <= f.Max
}

// InputValue accepts either a bare JSON number, null, or an object carrying
// a "value" member, so clients that echo back the MeasuredValue shape keep
// working.
type InputValue struct {
	Value *float64
}

func (iv *InputValue) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		iv.Value = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		iv.Value = obj.Value
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	iv.Value = &n
	return nil
}

func (iv InputValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.Value)
}

// AnalysisInput is the case a client submits for interpretation.
type AnalysisInput struct {
	Values          map[string]InputValue `json:"values"`
	ClinicalHistory string                `json:"clinicalHistory,omitempty"`
	SampleType      string                `json:"sampleType,omitempty"`
}

// Numeric returns the finite value for a field, if the client provided one.
func (in AnalysisInput) Numeric(name string) (float64, bool) {
	iv, ok := in.Values[name]
	if !ok || iv.Value == nil {
		return 0, false
	}
	v := *iv.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Validate enforces the minimum inputs for an interpretation. pH and pCO2
// carry the acid-base picture; everything else is optional.
func (in AnalysisInput) Validate() error {
	var missing []string
	for _, name := range []string{"ph", "pco2"} {
		if _, ok := in.Numeric(name); !ok {
			f := fieldIndex[name]
			missing = append(missing, f.Label)
		}
	}
	if len(missing) > 0 {
		return common.InvalidInputErrorf("%s required as numeric values", strings.Join(missing, " and "))
	}
	return nil
}

// SampleLabel normalizes the sample type for prompt rendering.
func (in AnalysisInput) SampleLabel() string {
	s := strings.ToLower(strings.TrimSpace(in.SampleType))
	switch s {
	case "", "arterial":
		return "arterial"
	case "venous":
		return "venous"
	default:
		return s
	}
}

// String is used in logs; values only, no clinical history (may carry PHI).
func (in AnalysisInput) String() string {
	present := make([]string, 0, len(in.Values))
	for _, f := range Fields {
		if _, ok := in.Numeric(f.Name); ok {
			present = append(present, f.Name)
		}
	}
	return fmt.Sprintf("sample=%s fields=%s", in.SampleLabel(), strings.Join(present, ","))
}
