package structure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// EntityKeywords are substrings of column names that suggest a grouping key.
var EntityKeywords = []string{
	"id", "name", "company", "entity", "country", "state", "region", "city",
	"customer", "product", "symbol", "ticker", "code", "identifier",
}

// EmailColumns are the canonical header-derived columns of mail exports.
var EmailColumns = []string{"From", "To", "Subject"}

const (
	// DateShare is the parse share a column needs to count as the date axis.
	// Deliberately more permissive than analysis.DatetimeShare.
	DateShare = 0.5

	entityMinRatio   = 0.1
	entityMaxRatio   = 1.0
	fallbackMaxRatio = 0.8
)

// yearHints mark column names whose bare four-digit integers are years.
var yearHints = []string{"year", "yr", "fy", "period", "date"}

// Options carries caller context for a classification.
type Options struct {
	// FromMailbox is set when the table came from a mailbox export.
	FromMailbox bool
}

// Classify decides the table's shape. It never panics: an internal failure
// yields a General verdict with no columns, together with the recovered error.
func Classify(t *table.Table, profiles []analysis.ColumnProfile, opt Options) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = Verdict{Kind: General}
			err = fmt.Errorf("classify: recovered: %v", r)
		}
	}()
	if profiles == nil {
		profiles = analysis.Profile(t)
	}
	if opt.FromMailbox && IsEmail(t) {
		return emailVerdict(t), nil
	}
	v = classify(t, profiles)
	if v.Kind == General && IsEmail(t) {
		v = emailVerdict(t)
	}
	return v, nil
}

func classify(t *table.Table, profiles []analysis.ColumnProfile) Verdict {
	dateCol := FindDateColumn(t)
	hasNumeric := false
	for _, p := range profiles {
		if p.Kind == analysis.KindNumeric && p.Name != dateCol {
			hasNumeric = true
			break
		}
	}
	switch {
	case dateCol != "" && hasNumeric:
		if entity := FindEntityColumn(t, dateCol); entity != "" {
			return Verdict{Kind: Panel, DateColumn: dateCol, EntityColumn: entity}
		}
		return Verdict{Kind: TimeSeries, DateColumn: dateCol}
	case dateCol == "" || distinct(t, t.Index(dateCol)) <= 1:
		return Verdict{Kind: CrossSectional}
	default:
		return Verdict{Kind: General}
	}
}

// IsEmail reports whether at least two of From, To and Subject are present.
func IsEmail(t *table.Table) bool {
	n := 0
	for _, c := range EmailColumns {
		if t.IndexFold(c) >= 0 {
			n++
		}
	}
	return n >= 2
}

func emailVerdict(t *table.Table) Verdict {
	v := Verdict{Kind: Email}
	if i := t.IndexFold("Date"); i >= 0 {
		v.DateColumn = t.Columns()[i]
	}
	return v
}

// FindDateColumn returns the first column whose non-null values parse as
// dates at more than DateShare, or "".
func FindDateColumn(t *table.Table) string {
	for i, name := range t.Columns() {
		if DateShareOf(name, t.Column(i)) > DateShare {
			return name
		}
	}
	return ""
}

// DateShareOf is the fraction of non-null values that look like dates.
// Bare years count only under a year-like column name.
func DateShareOf(name string, values []string) float64 {
	total, hits := 0, 0
	for _, v := range values {
		if table.IsNull(v) {
			continue
		}
		total++
		if _, ok := ParseDateCell(name, v); ok {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// FindEntityColumn prefers a keyword-named column with a uniqueness ratio in
// (0.1, 1.0); otherwise it takes the first column with a ratio in (0.1, 0.8).
// The fallback is a known source of false positives and is kept as is.
func FindEntityColumn(t *table.Table, exclude string) string {
	cols := t.Columns()
	ratios := make([]float64, len(cols))
	for i := range cols {
		ratios[i] = UniquenessRatio(t, i)
	}
	for i, name := range cols {
		if name == exclude {
			continue
		}
		if hasAny(strings.ToLower(name), EntityKeywords) && ratios[i] > entityMinRatio && ratios[i] < entityMaxRatio {
			return name
		}
	}
	for i, name := range cols {
		if name == exclude {
			continue
		}
		if ratios[i] > entityMinRatio && ratios[i] < fallbackMaxRatio {
			return name
		}
	}
	return ""
}

// UniquenessRatio is distinct non-null values over the row count.
func UniquenessRatio(t *table.Table, idx int) float64 {
	if t.NumRows() == 0 {
		return 0
	}
	return float64(distinct(t, idx)) / float64(t.NumRows())
}

func distinct(t *table.Table, idx int) int {
	if idx < 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, v := range t.Column(idx) {
		if !table.IsNull(v) {
			seen[strings.TrimSpace(v)] = struct{}{}
		}
	}
	return len(seen)
}

// ParseDateCell parses one cell of the named column as a date. A bare year
// such as 2023 is accepted only when the column name hints at years.
func ParseDateCell(name, v string) (time.Time, bool) {
	if ts, ok := analysis.ParseTime(v); ok {
		return ts, true
	}
	if !hasAny(strings.ToLower(name), yearHints) {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f != math.Trunc(f) || f < 1800 || f > 2100 {
		return time.Time{}, false
	}
	return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), true
}

func hasAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
