// Package impute suggests and applies missing-value imputation per column.
package impute

import (
	"errors"
	"fmt"
	"strings"
)

// Method names an imputation strategy.
type Method string

const (
	Mean         Method = "mean"
	Median       Method = "median"
	Mode         Method = "mode"
	ForwardFill  Method = "forward_fill"
	BackwardFill Method = "backward_fill"
	Interpolate  Method = "interpolate"
	Constant     Method = "constant"
	Delete       Method = "delete"
	KNN          Method = "knn"
	// Custom is suggested when no automatic method fits; applying it needs a value.
	Custom Method = "custom"
)

// Methods lists every supported method.
var Methods = []Method{Mean, Median, Mode, ForwardFill, BackwardFill, Interpolate, Constant, Delete, KNN, Custom}

var (
	// ErrStatisticalTest marks a normality test that could not run; the
	// suggestion falls back to median.
	ErrStatisticalTest = errors.New("statistical test failed")
	ErrUnknownMethod   = errors.New("unknown imputation method")
	ErrNotNumeric      = errors.New("column is not numeric")
	ErrNoValues        = errors.New("column has no non-null values")
	ErrValueRequired   = errors.New("a fill value is required")
)

// ParseMethod accepts a method name case-insensitively; "ffill" and "bfill"
// are accepted as shorthands.
func ParseMethod(s string) (Method, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "ffill":
		return ForwardFill, nil
	case "bfill":
		return BackwardFill, nil
	}
	for _, m := range Methods {
		if string(m) == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// MethodError reports a failed imputation for one column.
type MethodError struct {
	Column string
	Method Method
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("impute %s on %q: %v", e.Method, e.Column, e.Err)
}

func (e *MethodError) Unwrap() error { return e.Err }

// Options carries the tunable planner constants.
type Options struct {
	// SampleCap bounds the normality test sample.
	SampleCap int `mapstructure:"normality_sample_cap" yaml:"normality_sample_cap"`
	// Alpha is the significance level; p > Alpha counts as normal.
	Alpha float64 `mapstructure:"normality_alpha" yaml:"normality_alpha"`
	// HeavyMissingPct is the missing share at and above which median is always suggested.
	HeavyMissingPct float64 `mapstructure:"heavy_missing_pct" yaml:"heavy_missing_pct"`
	// K is the neighbour count for knn.
	K int `mapstructure:"knn_k" yaml:"knn_k"`
}

// DefaultOptions returns the stock planner settings.
func DefaultOptions() Options {
	return Options{SampleCap: 5000, Alpha: 0.05, HeavyMissingPct: 30, K: 5}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleCap <= 0 {
		o.SampleCap = d.SampleCap
	}
	if o.Alpha <= 0 || o.Alpha >= 1 {
		o.Alpha = d.Alpha
	}
	if o.HeavyMissingPct <= 0 {
		o.HeavyMissingPct = d.HeavyMissingPct
	}
	if o.K <= 0 {
		o.K = d.K
	}
	return o
}
