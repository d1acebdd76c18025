package organize

import (
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = time.RFC3339
)

// Span is the date range of an organized time series.
type Span struct {
	Min     time.Time `json:"min" yaml:"min"`
	Max     time.Time `json:"max" yaml:"max"`
	Valid   int       `json:"valid" yaml:"valid"`
	Invalid int       `json:"invalid" yaml:"invalid"`
}

// Days is the width of the span in days.
func (s Span) Days() float64 { return s.Max.Sub(s.Min).Hours() / 24 }

// timeSeries rewrites the date column in canonical form (date-only when every
// value is midnight UTC, RFC 3339 otherwise), nulls unparseable values and
// sorts by it. Null dates sort last in both directions.
func timeSeries(t *table.Table, v structure.Verdict, opt Options) *Result {
	res := &Result{Table: t, Verdict: v}
	col, note := recoverColumn(t, v.DateColumn, func() string { return structure.FindDateColumn(t) })
	if col == "" {
		res.Err = &ColumnNotFoundError{Column: v.DateColumn}
		return res
	}
	if note != "" {
		res.Notes = append(res.Notes, note)
	}
	res.Verdict.DateColumn = col

	idx := t.Index(col)
	raw := t.Column(idx)
	times := make([]time.Time, len(raw))
	valid := make([]bool, len(raw))
	span := &Span{}
	dateOnly := true
	for i, s := range raw {
		if table.IsNull(s) {
			continue
		}
		ts, ok := structure.ParseDateCell(col, s)
		if !ok {
			span.Invalid++
			continue
		}
		ts = ts.UTC()
		times[i], valid[i] = ts, true
		if !ts.Equal(ts.Truncate(24 * time.Hour)) {
			dateOnly = false
		}
		if span.Valid == 0 || ts.Before(span.Min) {
			span.Min = ts
		}
		if span.Valid == 0 || ts.After(span.Max) {
			span.Max = ts
		}
		span.Valid++
	}

	layout := stampLayout
	if dateOnly {
		layout = dateLayout
	}
	canon := make([]string, len(raw))
	for i := range raw {
		if valid[i] {
			canon[i] = times[i].Format(layout)
		}
	}
	out, err := t.WithColumn(col, canon)
	if err != nil {
		res.Err = err
		return res
	}
	out = out.SortStable(func(a, b int) bool {
		if valid[a] != valid[b] {
			return valid[a]
		}
		if !valid[a] {
			return false
		}
		if opt.Descending {
			return times[a].After(times[b])
		}
		return times[a].Before(times[b])
	})

	res.Table = out
	res.Organized = true
	if span.Valid > 0 {
		res.Span = span
	}
	return res
}
