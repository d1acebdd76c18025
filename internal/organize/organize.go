// Package organize reshapes a table according to its structure verdict.
package organize

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// ColumnNotFoundError is returned when a verdict column is gone and could not be recovered.
type ColumnNotFoundError = structure.ColumnNotFoundError

// Options are the caller's choices for organizing.
type Options struct {
	// Descending flips the time series and cross-sectional sort direction.
	Descending bool
	// SortColumn is the cross-sectional sort key; empty leaves row order alone.
	SortColumn string
	// Email overrides the default spam and priority settings.
	Email *email.Config
}

// Result is an organized table. When Organized is false, Table is the input
// table unchanged and Err says why.
type Result struct {
	Table *table.Table `json:"-" yaml:"-"`
	// Verdict carries the columns actually used, which may differ from the
	// input verdict after recovery.
	Verdict   structure.Verdict `json:"verdict" yaml:"verdict"`
	Organized bool              `json:"organized" yaml:"organized"`
	Err       error             `json:"-" yaml:"-"`
	Notes     []string          `json:"notes,omitempty" yaml:"notes,omitempty"`

	Span    *Span          `json:"span,omitempty" yaml:"span,omitempty"`
	Balance *Balance       `json:"balance,omitempty" yaml:"balance,omitempty"`
	Email   *email.Summary `json:"email,omitempty" yaml:"email,omitempty"`
}

// Organize dispatches on the verdict kind. It never panics on a stale verdict:
// missing columns are recovered where possible, otherwise the input table is
// returned with Organized=false.
func Organize(t *table.Table, v structure.Verdict, opt Options) *Result {
	if t.Empty() {
		return &Result{Table: t, Verdict: v}
	}
	switch v.Kind {
	case structure.TimeSeries:
		return timeSeries(t, v, opt)
	case structure.Panel:
		return panel(t, v)
	case structure.CrossSectional:
		return crossSectional(t, v, opt)
	case structure.Email:
		return mailbox(t, v, opt)
	case structure.General:
		return &Result{Table: t, Verdict: v}
	default:
		return &Result{Table: t, Verdict: v, Err: fmt.Errorf("organize: unhandled structure %v", v.Kind)}
	}
}

func mailbox(t *table.Table, v structure.Verdict, opt Options) *Result {
	cfg := email.DefaultConfig()
	if opt.Email != nil {
		cfg = *opt.Email
	}
	out, sum, err := email.Organize(t, v.DateColumn, cfg)
	if err != nil {
		return &Result{Table: t, Verdict: v, Err: err}
	}
	if v.DateColumn != "" && !out.HasColumn(v.DateColumn) {
		v.DateColumn = ""
	}
	return &Result{Table: out, Verdict: v, Organized: true, Email: sum}
}

func crossSectional(t *table.Table, v structure.Verdict, opt Options) *Result {
	if opt.SortColumn == "" {
		return &Result{Table: t, Verdict: v, Organized: true}
	}
	idx := t.Index(opt.SortColumn)
	if idx < 0 {
		return &Result{Table: t, Verdict: v, Err: &ColumnNotFoundError{Column: opt.SortColumn}}
	}
	col := t.Column(idx)
	nums := make([]float64, len(col))
	numeric := true
	for i, c := range col {
		if table.IsNull(c) {
			continue
		}
		f, ok := analysis.ParseNumeric(c)
		if !ok {
			numeric = false
			break
		}
		nums[i] = f
	}
	out := t.SortStable(func(a, b int) bool {
		na, nb := table.IsNull(col[a]), table.IsNull(col[b])
		if na || nb {
			return !na && nb
		}
		if numeric {
			if opt.Descending {
				return nums[a] > nums[b]
			}
			return nums[a] < nums[b]
		}
		if opt.Descending {
			return col[a] > col[b]
		}
		return col[a] < col[b]
	})
	return &Result{Table: out, Verdict: v, Organized: true}
}

// recoverColumn resolves a verdict column against t: the name itself, then
// the first column whose name starts with it (deduplication suffixes), then
// rediscover. It returns "" when nothing matches.
func recoverColumn(t *table.Table, want string, rediscover func() string) (string, string) {
	if want != "" && t.HasColumn(want) {
		return want, ""
	}
	if want != "" {
		lw := strings.ToLower(want)
		for _, c := range t.Columns() {
			if strings.HasPrefix(strings.ToLower(c), lw) {
				return c, fmt.Sprintf("column %q recovered as %q", want, c)
			}
		}
	}
	if c := rediscover(); c != "" {
		return c, fmt.Sprintf("column %q rediscovered as %q", want, c)
	}
	return "", ""
}
