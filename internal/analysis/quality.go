package analysis

import (
	"math"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Quality is the aggregate completeness/duplication assessment of a table.
type Quality struct {
	Score         float64 `json:"score" yaml:"score"`
	MissingPct    float64 `json:"missing_pct" yaml:"missing_pct"`
	DuplicateRows int     `json:"duplicate_rows" yaml:"duplicate_rows"`
	HasDatetime   bool    `json:"has_datetime" yaml:"has_datetime"`
	HasNumeric    bool    `json:"has_numeric" yaml:"has_numeric"`
}

// QualityScore computes the 0-100 score directly from its inputs:
// 100 - min(50, missing%) - 2*duplicates, +5 for a datetime column,
// +5 for a numeric column, clamped.
func QualityScore(missingPct float64, duplicates int, hasDatetime, hasNumeric bool) float64 {
	s := 100 - math.Min(50, missingPct) - 2*float64(duplicates)
	if hasDatetime {
		s += 5
	}
	if hasNumeric {
		s += 5
	}
	return math.Max(0, math.Min(100, s))
}

// Score assesses t. An empty or nil table scores 0.
func Score(t *table.Table) Quality {
	if t.Empty() {
		return Quality{}
	}
	q := Quality{DuplicateRows: t.DuplicateRows()}
	nulls := 0
	for i, p := range Profile(t) {
		nulls += t.NullCount(i)
		switch p.Kind {
		case KindDatetime:
			q.HasDatetime = true
		case KindNumeric:
			q.HasNumeric = true
		}
	}
	q.MissingPct = float64(nulls) * 100 / float64(t.NumRows()*t.NumCols())
	q.Score = QualityScore(q.MissingPct, q.DuplicateRows, q.HasDatetime, q.HasNumeric)
	return q
}
