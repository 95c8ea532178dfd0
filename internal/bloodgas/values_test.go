package bloodgas

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestInputValueUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{name: "bare number", in: `7.15`, want: f(7.15)},
		{name: "null", in: `null`, want: nil},
		{name: "value object", in: `{"value": 8.9, "error": null, "warning": null}`, want: f(8.9)},
		{name: "value object null", in: `{"value": null}`, want: nil},
		{name: "negative", in: `-4.5`, want: f(-4.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var iv InputValue
			if err := json.Unmarshal([]byte(tt.in), &iv); err != nil {
				t.Fatalf("unmarshal %q: %v", tt.in, err)
			}
			switch {
			case tt.want == nil && iv.Value != nil:
				t.Fatalf("want nil, got %v", *iv.Value)
			case tt.want != nil && iv.Value == nil:
				t.Fatalf("want %v, got nil", *tt.want)
			case tt.want != nil && *iv.Value != *tt.want:
				t.Fatalf("want %v, got %v", *tt.want, *iv.Value)
			}
		})
	}
}

func TestAnalysisInputValidate(t *testing.T) {
	in := AnalysisInput{Values: map[string]InputValue{
		"ph":   {Value: f(7.15)},
		"pco2": {Value: f(8.9)},
	}}
	if err := in.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	missing := AnalysisInput{Values: map[string]InputValue{
		"ph": {Value: f(7.15)},
	}}
	err := missing.Validate()
	if err == nil {
		t.Fatal("missing pCO2 accepted")
	}
	if !strings.Contains(err.Error(), "pCO2") {
		t.Fatalf("error does not name pCO2: %v", err)
	}

	empty := AnalysisInput{}
	if err := empty.Validate(); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestFieldRegistry(t *testing.T) {
	if len(Fields) != 14 {
		t.Fatalf("expected 14 fields, got %d", len(Fields))
	}
	for _, name := range []string{"ph", "pco2", "po2", "base_excess", "fio2"} {
		if _, ok := FieldByName(name); !ok {
			t.Fatalf("missing field %q", name)
		}
	}
	pco2, _ := FieldByName("pco2")
	if !pco2.Pressure {
		t.Fatal("pco2 not marked as a pressure field")
	}
	ph, _ := FieldByName("ph")
	if ph.Pressure {
		t.Fatal("ph wrongly marked as a pressure field")
	}
	if ph.InRange(8.5) {
		t.Fatal("pH 8.5 accepted")
	}
	if !ph.InRange(7.4) {
		t.Fatal("pH 7.4 rejected")
	}
	be, _ := FieldByName("base_excess")
	if !be.InRange(-12) {
		t.Fatal("base excess -12 rejected")
	}
}

func TestSampleLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "arterial"},
		{"arterial", "arterial"},
		{"Venous", "venous"},
		{"capillary", "capillary"},
	}
	for _, tt := range tests {
		in := AnalysisInput{SampleType: tt.in}
		if got := in.SampleLabel(); got != tt.want {
			t.Fatalf("SampleLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func f(v float64) *float64 { return &v }
