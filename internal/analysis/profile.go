// Package analysis profiles table columns and scores overall data quality.
package analysis

import (
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Kind is the inferred statistical type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindDatetime    Kind = "datetime"
	KindCategorical Kind = "categorical"
	KindBoolean     Kind = "boolean"
	KindText        Kind = "text"
)

// Acceptance thresholds, applied to the whole non-null population of a column.
const (
	NumericShare      = 0.90
	DatetimeShare     = 0.70
	CategoricalRatio  = 0.30
	CategoricalMaxLen = 100
	maxExamples       = 5
)

// ColumnProfile summarizes one column of a table.
type ColumnProfile struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	NonNull  int      `json:"non_null" yaml:"non_null"`
	Null     int      `json:"null" yaml:"null"`
	Unique   int      `json:"unique" yaml:"unique"`
	Examples []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// MissingPct is the share of null cells in percent.
func (p ColumnProfile) MissingPct() float64 {
	total := p.NonNull + p.Null
	if total == 0 {
		return 0
	}
	return float64(p.Null) * 100 / float64(total)
}

// InferKind types a column from all of its values. Nulls are ignored; the
// first matching test wins: numeric, datetime, boolean, categorical, text.
func InferKind(values []string) Kind {
	vals := nonNull(values)
	if len(vals) == 0 {
		return KindText
	}
	n := float64(len(vals))

	num := 0
	for _, v := range vals {
		if _, ok := ParseNumeric(v); ok {
			num++
		}
	}
	if float64(num)/n >= NumericShare {
		return KindNumeric
	}

	dt := 0
	for _, v := range vals {
		if _, ok := ParseTime(v); ok {
			dt++
		}
	}
	if float64(dt)/n >= DatetimeShare {
		return KindDatetime
	}

	allBool := true
	uniq := make(map[string]struct{})
	for _, v := range vals {
		if allBool && !IsBoolToken(v) {
			allBool = false
		}
		uniq[v] = struct{}{}
	}
	if allBool {
		return KindBoolean
	}
	if float64(len(uniq))/n < CategoricalRatio && len(uniq) < CategoricalMaxLen {
		return KindCategorical
	}
	return KindText
}

// ProfileColumn builds the profile of a single column.
func ProfileColumn(name string, values []string) ColumnProfile {
	p := ColumnProfile{Name: name, Kind: InferKind(values)}
	seen := make(map[string]struct{})
	for _, v := range values {
		if table.IsNull(v) {
			p.Null++
			continue
		}
		p.NonNull++
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			if len(p.Examples) < maxExamples {
				p.Examples = append(p.Examples, v)
			}
		}
	}
	p.Unique = len(seen)
	return p
}

// Profile returns one profile per column, in column order.
func Profile(t *table.Table) []ColumnProfile {
	if t == nil {
		return nil
	}
	cols := t.Columns()
	out := make([]ColumnProfile, len(cols))
	for i, c := range cols {
		out[i] = ProfileColumn(c, t.Column(i))
	}
	return out
}

// Find returns the profile for name, if present.
func Find(profiles []ColumnProfile, name string) (ColumnProfile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ColumnProfile{}, false
}

func nonNull(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !table.IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}
