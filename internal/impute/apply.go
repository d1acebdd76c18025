package impute

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Constant fill defaults when no value is supplied.
const (
	DefaultNumericFill = "0"
	DefaultTextFill    = "Missing"
)

// Apply imputes one column and returns the new table together with the number
// of nulls removed, counted before and after on fresh tables. For Delete the
// count equals the number of dropped rows. value is required for Custom and
// optional for Constant.
func Apply(t *table.Table, column string, m Method, value *string, opt Options) (*table.Table, int, error) {
	opt = opt.withDefaults()
	idx := t.Index(column)
	if idx < 0 {
		return t, 0, &MethodError{Column: column, Method: m, Err: &structure.ColumnNotFoundError{Column: column}}
	}
	before := t.NullCount(idx)
	out, err := apply(t, idx, m, value, opt)
	if err != nil {
		return t, 0, &MethodError{Column: column, Method: m, Err: err}
	}
	after := 0
	if j := out.Index(column); j >= 0 {
		after = out.NullCount(j)
	}
	return out, before - after, nil
}

func apply(t *table.Table, idx int, m Method, value *string, opt Options) (*table.Table, error) {
	col := t.Column(idx)
	name := t.Columns()[idx]
	if m == Delete {
		return t.Filter(func(row int) bool { return !table.IsNull(col[row]) }), nil
	}

	var filled []string
	var err error
	switch m {
	case Mean, Median:
		filled, err = fillStatistic(col, m)
	case Mode:
		filled, err = fillMode(col)
	case ForwardFill:
		filled, err = fillForward(col)
	case BackwardFill:
		filled, err = fillBackward(col)
	case Interpolate:
		if analysis.InferKind(col) != analysis.KindNumeric {
			filled, err = fillForward(col)
			break
		}
		filled, err = fillLinear(col)
	case Constant:
		v := DefaultTextFill
		if analysis.InferKind(col) == analysis.KindNumeric {
			v = DefaultNumericFill
		}
		if value != nil {
			v = *value
		}
		filled = fillWith(col, v)
	case Custom:
		if value == nil {
			return nil, ErrValueRequired
		}
		filled = fillWith(col, *value)
	case KNN:
		filled, err = fillKNN(t, idx, opt.K)
	default:
		return nil, ErrUnknownMethod
	}
	if err != nil {
		return nil, err
	}
	return t.WithColumn(name, filled)
}

func fillWith(col []string, v string) []string {
	out := append([]string(nil), col...)
	for i, c := range out {
		if table.IsNull(c) {
			out[i] = v
		}
	}
	return out
}

func fillStatistic(col []string, m Method) ([]string, error) {
	xs := numbers(col)
	if len(xs) == 0 {
		return nil, ErrNotNumeric
	}
	var v float64
	if m == Mean {
		v = stat.Mean(xs, nil)
	} else {
		v = median(xs)
	}
	return fillWith(col, FormatFloat(v)), nil
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// fillMode uses the most frequent value; ties go to the smallest value.
func fillMode(col []string) ([]string, error) {
	counts := make(map[string]int)
	for _, c := range col {
		if !table.IsNull(c) {
			counts[c]++
		}
	}
	if len(counts) == 0 {
		return nil, ErrNoValues
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return fillWith(col, best), nil
}

// fillForward carries the last seen value forward; leading nulls take the
// first value so no null survives.
func fillForward(col []string) ([]string, error) {
	out := append([]string(nil), col...)
	first := -1
	for i, c := range out {
		if !table.IsNull(c) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, ErrNoValues
	}
	last := out[first]
	for i := range out {
		if table.IsNull(out[i]) {
			out[i] = last
		} else {
			last = out[i]
		}
	}
	return out, nil
}

// fillBackward is fillForward mirrored.
func fillBackward(col []string) ([]string, error) {
	rev := make([]string, len(col))
	for i, c := range col {
		rev[len(col)-1-i] = c
	}
	f, err := fillForward(rev)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f))
	for i, c := range f {
		out[len(f)-1-i] = c
	}
	return out, nil
}

// fillLinear interpolates by row position between known neighbours. Edges
// take the nearest known value.
func fillLinear(col []string) ([]string, error) {
	type point struct {
		i int
		v float64
	}
	var known []point
	for i, c := range col {
		if table.IsNull(c) {
			continue
		}
		if f, ok := analysis.ParseNumeric(c); ok {
			known = append(known, point{i, f})
		}
	}
	if len(known) == 0 {
		return nil, ErrNotNumeric
	}
	out := append([]string(nil), col...)
	k := 0
	for i := range out {
		if !table.IsNull(out[i]) {
			continue
		}
		for k < len(known) && known[k].i < i {
			k++
		}
		switch {
		case k == 0:
			out[i] = FormatFloat(known[0].v)
		case k == len(known):
			out[i] = FormatFloat(known[len(known)-1].v)
		default:
			lo, hi := known[k-1], known[k]
			frac := float64(i-lo.i) / float64(hi.i-lo.i)
			out[i] = FormatFloat(lo.v + frac*(hi.v-lo.v))
		}
	}
	return out, nil
}

// FormatFloat renders an imputed number with at most two decimals.
func FormatFloat(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
