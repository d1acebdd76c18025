package table

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	return MustNew([]string{"id", "name"}, [][]string{{"2", "b"}, {"1", "a"}, {"2", "b"}})
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]string{{"1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRaggedRows))
}

func TestNewCopiesInputs(t *testing.T) {
	cols := []string{"a"}
	rows := [][]string{{"1"}}
	tb := MustNew(cols, rows)
	cols[0], rows[0][0] = "x", "9"
	assert.Equal(t, []string{"a"}, tb.Columns())
	assert.Equal(t, "1", tb.Cell(0, 0))

	got := tb.Row(0)
	got[0] = "changed"
	assert.Equal(t, "1", tb.Cell(0, 0))
}

func TestTransformsReturnNewTables(t *testing.T) {
	in := sample()
	before := in.Hash()

	sorted := in.SortStable(func(a, b int) bool { return in.Cell(a, 0) < in.Cell(b, 0) })
	assert.Equal(t, []string{"1", "2", "2"}, sorted.Column(0))

	with, err := in.WithColumn("flag", []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "flag"}, with.Columns())

	replaced, err := in.WithColumn("name", []string{"p", "q", "r"})
	require.NoError(t, err)
	assert.Equal(t, 2, replaced.NumCols())
	assert.Equal(t, "q", replaced.Cell(1, 1))

	_, err = in.WithColumn("short", []string{"x"})
	assert.ErrorIs(t, err, ErrRaggedRows)

	filtered := in.Filter(func(r int) bool { return in.Cell(r, 0) == "2" })
	assert.Equal(t, 2, filtered.NumRows())

	assert.Equal(t, before, in.Hash())
	assert.Equal(t, []string{"2", "1", "2"}, in.Column(0))
}

func TestDuplicateRowsAndHash(t *testing.T) {
	in := sample()
	assert.Equal(t, 1, in.DuplicateRows())
	assert.Equal(t, in.Hash(), sample().Hash())

	other := MustNew([]string{"id", "name"}, [][]string{{"2", "b"}, {"1", "a"}, {"2", "c"}})
	assert.NotEqual(t, in.Hash(), other.Hash())
	assert.False(t, in.Equal(other))
	assert.True(t, in.Equal(sample()))

	// Cell boundaries are part of the hash.
	a := MustNew([]string{"x", "y"}, [][]string{{"ab", "c"}})
	b := MustNew([]string{"x", "y"}, [][]string{{"a", "bc"}})
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestNilTable(t *testing.T) {
	var tb *Table
	assert.True(t, tb.Empty())
	assert.Equal(t, 0, tb.NumRows())
	assert.Equal(t, -1, tb.Index("a"))
	assert.Equal(t, 0, tb.DuplicateRows())
	assert.True(t, MustNew([]string{"a"}, nil).Empty())
}

func TestIndexFold(t *testing.T) {
	tb := MustNew([]string{"From", "subject"}, nil)
	assert.Equal(t, -1, tb.Index("from"))
	assert.Equal(t, 0, tb.IndexFold("from"))
	assert.Equal(t, 1, tb.IndexFold("SUBJECT"))
}

func TestIsNull(t *testing.T) {
	for _, s := range []string{"", "  ", "NULL", "NaN", "na", "N/A", "None", "nil", "#N/A"} {
		assert.True(t, IsNull(s), s)
	}
	for _, s := range []string{"0", "-", "missing", "nan1"} {
		assert.False(t, IsNull(s), s)
	}
}

func TestNormalizeHeader(t *testing.T) {
	got := NormalizeHeader([]string{"\ufeffName", " ", "Name", "Name", "Age "})
	assert.Equal(t, []string{"Name", "Column_2", "Name_1", "Name_2", "Age"}, got)

	// Output names are always unique.
	got = NormalizeHeader([]string{"a", "a_1", "a"})
	seen := map[string]bool{}
	for _, n := range got {
		assert.False(t, seen[n], n)
		seen[n] = true
	}
}

func TestWriteCSV(t *testing.T) {
	tb := MustNew([]string{"a", "b"}, [][]string{{"1", "x,y"}, {"", `say "hi"`}})
	var buf bytes.Buffer
	require.NoError(t, tb.WriteCSV(&buf))
	assert.Equal(t, "a,b\n1,\"x,y\"\n,\"say \"\"hi\"\"\"\n", buf.String())
}
