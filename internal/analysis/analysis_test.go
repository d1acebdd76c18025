package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func TestParseNumeric(t *testing.T) {
	cases := map[string]float64{
		"42":        42,
		"-3.5":      -3.5,
		"1,234":     1234,
		"1,234.56":  1234.56,
		"1.234,56":  1234.56,
		"1.234.567": 1234567,
		"3,5":       3.5,
		"$1,200":    1200,
		"EUR 10":    10,
		"45%":       45,
		"(12)":      -12,
		"1 000":     1000,
	}
	for in, want := range cases {
		got, ok := ParseNumeric(in)
		if assert.True(t, ok, in) {
			assert.InDelta(t, want, got, 1e-9, in)
		}
	}
	for _, in := range []string{"", "abc", "1,2,3", "NaN", "Inf", "12abc", "$"} {
		_, ok := ParseNumeric(in)
		assert.False(t, ok, in)
	}
}

func TestParseTime(t *testing.T) {
	for _, in := range []string{
		"2024-01-02",
		"2024-01-02T15:04:05Z",
		"2024-01-02 15:04",
		"01/02/2024",
		"Jan 2, 2024",
		"2 January 2024",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Tue, 5 Mar 2024 09:00:00 +0000 (UTC)",
	} {
		_, ok := ParseTime(in)
		assert.True(t, ok, in)
	}
	for _, in := range []string{"", "2024", "hello world", "12345678", "N/A"} {
		_, ok := ParseTime(in)
		assert.False(t, ok, in)
	}
	got, ok := ParseTime("03/04/2024")
	require.True(t, ok)
	assert.Equal(t, time.March, got.Month(), "month-first wins for ambiguous dates")
}

func TestInferKind(t *testing.T) {
	repeat := func(n int, vals ...string) []string {
		var out []string
		for i := 0; i < n; i++ {
			out = append(out, vals...)
		}
		return out
	}
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07", "soon", "later", "never"}
	numeric90 := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "ten"}

	cases := []struct {
		name   string
		values []string
		want   Kind
	}{
		{"numeric with nulls", []string{"1", "", "2.5", "NULL", "$3"}, KindNumeric},
		{"numeric at threshold", numeric90, KindNumeric},
		{"datetime at threshold", dates, KindDatetime},
		{"boolean vocabulary", []string{"yes", "no", "Y", "n", "TRUE"}, KindBoolean},
		{"zero one is numeric first", []string{"0", "1", "1", "0"}, KindNumeric},
		{"categorical", repeat(10, "red", "blue"), KindCategorical},
		{"text", []string{"alpha", "beta", "gamma"}, KindText},
		{"all null", []string{"", "NA", "null"}, KindText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InferKind(tc.values))
		})
	}

	// Below the numeric share the column is no longer numeric.
	assert.NotEqual(t, KindNumeric, InferKind([]string{"1", "2", "3", "4", "5", "6", "7", "8", "x", "y"}))
	// Many distinct labels stay text even when repeated.
	labels := make([]string, 0, 400)
	for i := 0; i < 200; i++ {
		l := fmt.Sprintf("label-%d", i)
		labels = append(labels, l, l)
	}
	assert.Equal(t, KindText, InferKind(labels))
}

func TestInferKindFullyNumericColumns(t *testing.T) {
	for _, vals := range [][]string{
		{"0"},
		{"1", "2", "3"},
		{"-1.5", "2e3", "1,000", "7%"},
		{"2022", "2023", "2024"},
	} {
		assert.Equal(t, KindNumeric, InferKind(vals), "%v", vals)
	}
}

func TestProfile(t *testing.T) {
	tb := table.MustNew([]string{"name", "n"}, [][]string{{"a", "1"}, {"", "2"}, {"b", "3"}, {"a", "n/a"}})
	ps := Profile(tb)
	require.Len(t, ps, 2)

	p := ps[0]
	assert.Equal(t, "name", p.Name)
	assert.Equal(t, 3, p.NonNull)
	assert.Equal(t, 1, p.Null)
	assert.Equal(t, 2, p.Unique)
	assert.Equal(t, []string{"a", "b"}, p.Examples)
	assert.InDelta(t, 25.0, p.MissingPct(), 1e-9)

	n, ok := Find(ps, "n")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, n.Kind)
	_, ok = Find(ps, "zzz")
	assert.False(t, ok)

	assert.Nil(t, Profile(nil))
	assert.Equal(t, 0.0, ColumnProfile{}.MissingPct())
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 100.0, QualityScore(0, 0, true, true))
	assert.Equal(t, 50.0, QualityScore(60, 0, false, false))
	assert.Equal(t, 89.0, QualityScore(10, 3, false, true))
	assert.Equal(t, 0.0, QualityScore(0, 60, false, false))
}

func TestQualityScoreMonotoneInMissing(t *testing.T) {
	for _, dups := range []int{0, 3, 20} {
		for _, flags := range [][2]bool{{false, false}, {true, false}, {true, true}} {
			prev := QualityScore(0, dups, flags[0], flags[1])
			for m := 1.0; m <= 100; m++ {
				s := QualityScore(m, dups, flags[0], flags[1])
				assert.LessOrEqual(t, s, prev, "missing %.0f dups %d", m, dups)
				assert.GreaterOrEqual(t, s, 0.0)
				prev = s
			}
		}
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, Quality{}, Score(nil))
	assert.Equal(t, 0.0, Score(table.MustNew([]string{"a"}, nil)).Score)

	tb := table.MustNew([]string{"name", "val"}, [][]string{{"a", "1"}, {"a", "1"}, {"b", ""}})
	q := Score(tb)
	assert.Equal(t, 1, q.DuplicateRows)
	assert.True(t, q.HasNumeric)
	assert.False(t, q.HasDatetime)
	assert.InDelta(t, 100.0/6, q.MissingPct, 1e-9)
	assert.InDelta(t, 100-100.0/6-2+5, q.Score, 1e-9)
}
