// Package table holds the immutable string grid shared by every pipeline stage.
//
// A Table is never mutated after construction: every transform returns a new
// Table value, so a stage can never corrupt the table it received.
package table

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrRaggedRows is returned when rows do not share the header's column count.
var ErrRaggedRows = errors.New("rows have differing column counts")

// Table is a header plus rows of string cells. Nulls are represented by
// values for which IsNull reports true.
type Table struct {
	columns []string
	rows    [][]string
}

// New builds a table, copying its inputs. Every row must have exactly
// len(columns) cells.
func New(columns []string, rows [][]string) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", i+1, len(r), len(columns), ErrRaggedRows)
		}
	}
	t := &Table{columns: append([]string(nil), columns...), rows: make([][]string, len(rows))}
	for i, r := range rows {
		t.rows[i] = append([]string(nil), r...)
	}
	return t, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(columns []string, rows [][]string) *Table {
	t, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty reports whether the table has no columns or no rows. A nil table is empty.
func (t *Table) Empty() bool {
	return t == nil || len(t.columns) == 0 || len(t.rows) == 0
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string { return append([]string(nil), t.rows[i]...) }

// Rows returns a deep copy of all rows.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

func (t *Table) Cell(row, col int) string { return t.rows[row][col] }

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// IndexFold is Index with case-insensitive matching.
func (t *Table) IndexFold(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func (t *Table) HasColumn(name string) bool { return t.Index(name) >= 0 }

// Column returns a copy of the values of column idx.
func (t *Table) Column(idx int) []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[idx]
	}
	return out
}

// NullCount counts null cells in column idx against the current row count.
func (t *Table) NullCount(idx int) int {
	n := 0
	for _, r := range t.rows {
		if IsNull(r[idx]) {
			n++
		}
	}
	return n
}

// WithColumn returns a new table where the named column holds values. The
// column is replaced in place when it exists and appended otherwise.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, want %d: %w", name, len(values), len(t.rows), ErrRaggedRows)
	}
	cols := t.Columns()
	idx := t.Index(name)
	if idx < 0 {
		cols = append(cols, name)
	}
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		nr := append(make([]string, 0, len(cols)), r...)
		if idx < 0 {
			nr = append(nr, values[i])
		} else {
			nr[idx] = values[i]
		}
		rows[i] = nr
	}
	return &Table{columns: cols, rows: rows}, nil
}

// Reorder returns a new table whose rows follow order, a permutation of row indexes.
func (t *Table) Reorder(order []int) *Table {
	rows := make([][]string, len(order))
	for i, j := range order {
		rows[i] = t.Row(j)
	}
	return &Table{columns: t.Columns(), rows: rows}
}

// SortStable returns a new table sorted by less over row indexes of t.
func (t *Table) SortStable(less func(a, b int) bool) *Table {
	order := make([]int, len(t.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })
	return t.Reorder(order)
}

// Filter returns a new table with the rows for which keep reports true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var order []int
	for i := range t.rows {
		if keep(i) {
			order = append(order, i)
		}
	}
	return t.Reorder(order)
}

// DuplicateRows counts rows that repeat an earlier row exactly.
func (t *Table) DuplicateRows() int {
	if t == nil {
		return 0
	}
	seen := make(map[string]struct{}, len(t.rows))
	dups := 0
	for _, r := range t.rows {
		k := rowKey(r)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// Hash is a content hash over header and cells, used for memoizing derived results.
func (t *Table) Hash() string {
	h := sha1.New()
	if t != nil {
		h.Write([]byte(rowKey(t.columns)))
		for _, r := range t.rows {
			h.Write([]byte{'\n'})
			h.Write([]byte(rowKey(r)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two tables have identical headers and cells.
func (t *Table) Equal(o *Table) bool {
	if t.NumCols() != o.NumCols() || t.NumRows() != o.NumRows() {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if t.rows[i][j] != o.rows[i][j] {
				return false
			}
		}
	}
	return true
}

func rowKey(r []string) string {
	var b strings.Builder
	for i, c := range r {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(strconv.Quote(c))
	}
	return b.String()
}
