package impute

import (
	"fmt"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// ColumnStats is the missingness summary of one column.
type ColumnStats struct {
	Column     string        `json:"column" yaml:"column"`
	Kind       analysis.Kind `json:"kind" yaml:"kind"`
	Missing    int           `json:"missing" yaml:"missing"`
	MissingPct float64       `json:"missing_pct" yaml:"missing_pct"`
	Suggested  Method        `json:"suggested" yaml:"suggested"`
	// Normality holds the test p-value when one was computed.
	Normality *float64 `json:"normality_p,omitempty" yaml:"normality_p,omitempty"`
	// Fallback explains a suggestion that fell back after a failed test.
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Analyze computes missingness and a suggested method for every column,
// against the current row count.
func Analyze(t *table.Table, opt Options) []ColumnStats {
	if t.Empty() {
		return nil
	}
	out := make([]ColumnStats, 0, t.NumCols())
	for i, name := range t.Columns() {
		out = append(out, Stats(name, t.Column(i), opt))
	}
	return out
}

// Stats summarizes one column's values.
func Stats(name string, values []string, opt Options) ColumnStats {
	kind := analysis.InferKind(values)
	missing := 0
	for _, v := range values {
		if table.IsNull(v) {
			missing++
		}
	}
	cs := ColumnStats{Column: name, Kind: kind, Missing: missing}
	if len(values) > 0 {
		cs.MissingPct = 100 * float64(missing) / float64(len(values))
	}
	s := suggest(values, kind, cs.MissingPct, opt)
	cs.Suggested, cs.Normality = s.method, s.p
	if s.err != nil {
		cs.Fallback = s.err.Error()
	}
	return cs
}

// Suggest picks a method for a column of the given kind. For numeric columns
// with less than the heavy-missing share it runs a Shapiro-Wilk test: normal
// suggests mean, otherwise median. A failed test still returns median, along
// with an error wrapping ErrStatisticalTest for the caller to log.
func Suggest(values []string, kind analysis.Kind, opt Options) (Method, error) {
	missing := 0
	for _, v := range values {
		if table.IsNull(v) {
			missing++
		}
	}
	pct := 0.0
	if len(values) > 0 {
		pct = 100 * float64(missing) / float64(len(values))
	}
	s := suggest(values, kind, pct, opt)
	return s.method, s.err
}

type suggestion struct {
	method Method
	p      *float64
	err    error
}

func suggest(values []string, kind analysis.Kind, missingPct float64, opt Options) suggestion {
	opt = opt.withDefaults()
	switch kind {
	case analysis.KindNumeric:
		if missingPct >= opt.HeavyMissingPct {
			return suggestion{method: Median}
		}
		_, p, err := ShapiroWilk(sample(numbers(values), opt.SampleCap))
		if err != nil {
			return suggestion{method: Median, err: fmt.Errorf("normality test: %w", err)}
		}
		if p > opt.Alpha {
			return suggestion{method: Mean, p: &p}
		}
		return suggestion{method: Median, p: &p}
	case analysis.KindCategorical, analysis.KindBoolean:
		return suggestion{method: Mode}
	case analysis.KindDatetime:
		return suggestion{method: ForwardFill}
	default:
		return suggestion{method: Custom}
	}
}

// sample takes evenly spaced values so large columns are tested on a
// deterministic subset of at most limit values.
func sample(xs []float64, limit int) []float64 {
	if len(xs) <= limit {
		return xs
	}
	out := make([]float64, limit)
	step := float64(len(xs)) / float64(limit)
	for i := range out {
		out[i] = xs[int(float64(i)*step)]
	}
	return out
}

// numbers parses the non-null numeric cells, skipping the rest.
func numbers(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if table.IsNull(v) {
			continue
		}
		if f, ok := analysis.ParseNumeric(v); ok {
			out = append(out, f)
		}
	}
	return out
}
