package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/acidbase/abgassist/internal/bloodgas"
)

// Field-level error strings. These land in the {value,error,warning}
// envelope handed to clients, so they stay short and stable.
const (
	reasonUnreadable = "unreadable"
	reasonOutOfRange = "out of physiological range"
)

// numberToken pulls the leading signed decimal out of a decorated reading
// such as "8.9 (+)", "↓ 3.2" or "-4 #".
var numberToken = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Values extracts the measured-value object: isolation and the repair
// ladder as in Report, then per-field coercion, range validation, and the
// pressure-unit reinterpretation. The result always carries every registry
// key; per-field failures become {value:null, error:...} entries.
func Values(raw string, logger *slog.Logger) (map[string]bloodgas.MeasuredValue, error) {
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

	out := make(map[string]bloodgas.MeasuredValue, len(bloodgas.Fields))
	for _, f := range bloodgas.Fields {
		out[f.Name] = normalizeField(f, parsed[f.Name], logger)
	}
	return out, nil
}

// normalizeField runs one raw JSON value through coercion, bounds check,
// and (for gas pressures) the mmHg reinterpretation.
func normalizeField(f bloodgas.Field, raw json.RawMessage, logger *slog.Logger) bloodgas.MeasuredValue {
	v, present, readable := coerceNumber(raw)
	if !present {
		return bloodgas.MeasuredValue{}
	}
	if !readable {
		return bloodgas.Failed(reasonUnreadable)
	}
	if f.InRange(v) {
		return bloodgas.OK(v)
	}

	// Upstream extraction sometimes divides a value that was already in
	// kPa. When an under-range pressure lands back in range after the
	// kPa<->mmHg factor, reinterpret it, but always say so: the heuristic
	// cannot distinguish a genuinely low reading from a mis-scaled one.
	if f.Pressure && v < f.Min {
		if corrected := v * bloodgas.MmHgPerKPa; f.InRange(corrected) {
			logger.Warn("extract.values.autocorrect",
				"field", f.Name, "raw", v, "corrected", corrected)
			return bloodgas.OK(corrected).WithWarning(fmt.Sprintf(
				"%g %s is implausibly low; reinterpreted as a mis-scaled reading and multiplied by 7.5 to %g %s",
				v, f.Unit, corrected, f.Unit))
		}
	}
	return bloodgas.Failed(reasonOutOfRange)
}

// coerceNumber turns a raw JSON value into a finite float.
// present=false: the key was absent or null (not an error).
// readable=false: present but no finite number could be recovered.
func coerceNumber(raw json.RawMessage) (v float64, present, readable bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, true, false
		}
		return n, true, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, true, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		// an empty string stands for "not printed", same as null
		return 0, false, false
	}
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, true, false
	}
	tok = strings.ReplaceAll(tok, ",", ".")
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, true, false
	}
	return n, true, true
}
