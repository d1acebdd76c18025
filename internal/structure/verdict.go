// Package structure classifies the statistical shape of a table.
package structure

import (
	"fmt"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Kind enumerates the closed set of table shapes. Dispatch sites switch over
// every value; adding a kind means updating each switch.
type Kind int

const (
	General Kind = iota
	TimeSeries
	Panel
	CrossSectional
	Email
)

var kindNames = map[Kind]string{
	General:        "General",
	TimeSeries:     "Time Series",
	Panel:          "Panel Data",
	CrossSectional: "Cross-Sectional",
	Email:          "Email Data",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown structure kind %q", string(b))
}

// Verdict is the classifier's decision. DateColumn is set for TimeSeries,
// Panel and (when present) Email; EntityColumn only for Panel.
type Verdict struct {
	Kind         Kind   `json:"kind" yaml:"kind"`
	DateColumn   string `json:"date_column,omitempty" yaml:"date_column,omitempty"`
	EntityColumn string `json:"entity_column,omitempty" yaml:"entity_column,omitempty"`
}

func (v Verdict) String() string {
	switch {
	case v.EntityColumn != "":
		return fmt.Sprintf("%s (date=%s, entity=%s)", v.Kind, v.DateColumn, v.EntityColumn)
	case v.DateColumn != "":
		return fmt.Sprintf("%s (date=%s)", v.Kind, v.DateColumn)
	default:
		return v.Kind.String()
	}
}

// ColumnNotFoundError reports a referenced column missing from a table.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

// Validate checks that the verdict's columns still exist in t. A verdict that
// fails validation is stale and must be re-derived.
func (v Verdict) Validate(t *table.Table) error {
	for _, c := range []string{v.DateColumn, v.EntityColumn} {
		if c != "" && !t.HasColumn(c) {
			return &ColumnNotFoundError{Column: c}
		}
	}
	return nil
}
