package impute

import (
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Step is one column of a batch. An empty Method applies the suggestion.
type Step struct {
	Column string  `json:"column" yaml:"column"`
	Method Method  `json:"method,omitempty" yaml:"method,omitempty"`
	Value  *string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Outcome is the per-column entry of a Report.
type Outcome struct {
	Column      string  `json:"column" yaml:"column"`
	Missing     int     `json:"missing" yaml:"missing"`
	MissingPct  float64 `json:"missing_pct" yaml:"missing_pct"`
	Suggested   Method  `json:"suggested" yaml:"suggested"`
	Applied     Method  `json:"applied,omitempty" yaml:"applied,omitempty"`
	Imputed     int     `json:"imputed" yaml:"imputed"`
	RowsDropped int     `json:"rows_dropped,omitempty" yaml:"rows_dropped,omitempty"`
	Fallback    string  `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Error       string  `json:"error,omitempty" yaml:"error,omitempty"`
	Err         error   `json:"-" yaml:"-"`
}

// Report is built once per batch and not modified afterwards.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	RowsBefore int       `json:"rows_before" yaml:"rows_before"`
	RowsAfter  int       `json:"rows_after" yaml:"rows_after"`
	Columns    []Outcome `json:"columns" yaml:"columns"`
}

// Outcome looks up the entry for column.
func (r *Report) Outcome(column string) (Outcome, bool) {
	for _, o := range r.Columns {
		if o.Column == column {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed returns the outcomes whose method errored.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Columns {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Batch applies steps in order, each against the table produced by the
// previous successful step. A failing step is recorded and skipped; the
// remaining steps still run.
func Batch(t *table.Table, steps []Step, opt Options) (*table.Table, *Report) {
	rep := &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC(), RowsBefore: t.NumRows()}
	cur := t
	for _, s := range steps {
		o := Outcome{Column: s.Column}
		idx := cur.Index(s.Column)
		if idx >= 0 {
			cs := Stats(s.Column, cur.Column(idx), opt)
			o.Missing, o.MissingPct, o.Suggested, o.Fallback = cs.Missing, cs.MissingPct, cs.Suggested, cs.Fallback
		}
		m := s.Method
		if m == "" {
			m = o.Suggested
		}
		next, n, err := Apply(cur, s.Column, m, s.Value, opt)
		o.Applied = m
		if err != nil {
			o.Err, o.Error = err, err.Error()
			rep.Columns = append(rep.Columns, o)
			continue
		}
		o.Imputed = n
		o.RowsDropped = cur.NumRows() - next.NumRows()
		cur = next
		rep.Columns = append(rep.Columns, o)
	}
	rep.RowsAfter = cur.NumRows()
	return cur, rep
}
