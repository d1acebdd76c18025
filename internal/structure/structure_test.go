package structure

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func classifyTable(t *testing.T, tb *table.Table, opt Options) Verdict {
	t.Helper()
	v, err := Classify(tb, nil, opt)
	require.NoError(t, err)
	return v
}

func TestClassifyTimeSeries(t *testing.T) {
	tb := table.MustNew([]string{"Date", "Sales", "Region"}, [][]string{
		{"2024-01-01", "1500", "North"},
		{"2024-01-02", "2300", "South"},
	})
	assert.Equal(t, Verdict{Kind: TimeSeries, DateColumn: "Date"}, classifyTable(t, tb, Options{}))
}

func TestClassifyPanel(t *testing.T) {
	tb := table.MustNew([]string{"Company", "Year", "Revenue"}, [][]string{
		{"Apple", "2022", "100"},
		{"Apple", "2023", "110"},
		{"Google", "2022", "200"},
		{"Google", "2023", "210"},
	})
	assert.Equal(t, Verdict{Kind: Panel, DateColumn: "Year", EntityColumn: "Company"}, classifyTable(t, tb, Options{}))
}

func TestClassifyCrossSectional(t *testing.T) {
	cases := map[string]*table.Table{
		"no date": table.MustNew([]string{"name", "score"}, [][]string{{"ann", "1"}, {"bob", "2"}}),
		"no date no numeric": table.MustNew([]string{"name", "city"}, [][]string{{"ann", "paris"}, {"bob", "rome"}}),
		"single distinct date": table.MustNew([]string{"Date", "Label"}, [][]string{
			{"2024-01-01", "a"}, {"2024-01-01", "b"},
		}),
		"bare years without a year-like name": table.MustNew([]string{"Count", "Label"}, [][]string{
			{"2022", "a"}, {"2023", "b"},
		}),
	}
	for name, tb := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Verdict{Kind: CrossSectional}, classifyTable(t, tb, Options{}))
		})
	}
}

func TestClassifyGeneral(t *testing.T) {
	tb := table.MustNew([]string{"Date", "Note"}, [][]string{{"2024-01-01", "x"}, {"2024-01-02", "y"}})
	assert.Equal(t, Verdict{Kind: General}, classifyTable(t, tb, Options{}))
}

func TestClassifyEmail(t *testing.T) {
	// General falls back to the email check.
	tb := table.MustNew([]string{"from", "Subject", "Date"}, [][]string{
		{"a@x.io", "hello", "2024-01-01"},
		{"b@x.io", "re: hello", "2024-01-02"},
	})
	assert.Equal(t, Verdict{Kind: Email, DateColumn: "Date"}, classifyTable(t, tb, Options{}))

	// A numeric column makes the same shape a time series unless it came from a mailbox.
	withSize := table.MustNew([]string{"From", "To", "Date", "Size"}, [][]string{
		{"a@x.io", "b@x.io", "2024-01-01", "10"},
		{"b@x.io", "a@x.io", "2024-01-02", "20"},
	})
	assert.Equal(t, TimeSeries, classifyTable(t, withSize, Options{}).Kind)
	assert.Equal(t, Verdict{Kind: Email, DateColumn: "Date"}, classifyTable(t, withSize, Options{FromMailbox: true}))

	// One canonical column is not enough.
	one := table.MustNew([]string{"From", "Note"}, [][]string{{"a", "b"}})
	assert.False(t, IsEmail(one))
	assert.NotEqual(t, Email, classifyTable(t, one, Options{FromMailbox: true}).Kind)
}

func TestClassifyNilTable(t *testing.T) {
	v, err := Classify(nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, Verdict{Kind: CrossSectional}, v)
}

func TestFindEntityColumn(t *testing.T) {
	// Keyword columns may be up to (but not) fully unique.
	tb := table.MustNew([]string{"Date", "customer_id", "Group"}, [][]string{
		{"2024-01-01", "c1", "g1"},
		{"2024-01-02", "c1", "g1"},
		{"2024-01-03", "c2", "g2"},
		{"2024-01-04", "c3", "g2"},
	})
	assert.Equal(t, "customer_id", FindEntityColumn(tb, "Date"))

	// Without a keyword match any repeated column qualifies; false
	// positives are expected here.
	noKeyword := table.MustNew([]string{"Date", "Group"}, [][]string{
		{"2024-01-01", "g1"}, {"2024-01-02", "g1"}, {"2024-01-03", "g2"}, {"2024-01-04", "g2"},
	})
	assert.Equal(t, "Group", FindEntityColumn(noKeyword, "Date"))

	// Fully unique and constant columns never qualify.
	unique := table.MustNew([]string{"Date", "name", "const"}, [][]string{
		{"2024-01-01", "a", "k"}, {"2024-01-02", "b", "k"},
		{"2024-01-03", "c", "k"}, {"2024-01-04", "d", "k"},
		{"2024-01-05", "e", "k"}, {"2024-01-06", "f", "k"},
		{"2024-01-07", "g", "k"}, {"2024-01-08", "h", "k"},
		{"2024-01-09", "i", "k"}, {"2024-01-10", "j", "k"},
		{"2024-01-11", "l", "k"},
	})
	assert.Equal(t, "", FindEntityColumn(unique, "Date"))
}

func TestDateShareOf(t *testing.T) {
	assert.Equal(t, 1.0, DateShareOf("Year", []string{"2022", "2023", ""}))
	assert.Equal(t, 0.0, DateShareOf("Amount", []string{"2022", "2023"}))
	assert.Equal(t, 0.0, DateShareOf("fiscal_year", []string{"1700", "2022.5"}))
	assert.InDelta(t, 0.5, DateShareOf("when", []string{"2024-01-01", "soon"}), 1e-9)
	assert.Equal(t, 0.0, DateShareOf("when", []string{"", "NA"}))

	// Exactly half is not enough for the date axis.
	tb := table.MustNew([]string{"when", "n"}, [][]string{{"2024-01-01", "1"}, {"soon", "2"}})
	assert.Equal(t, "", FindDateColumn(tb))
}

func TestUniquenessRatio(t *testing.T) {
	tb := table.MustNew([]string{"a"}, [][]string{{"x"}, {" x"}, {""}, {"y"}})
	assert.InDelta(t, 0.5, UniquenessRatio(tb, 0), 1e-9)
	assert.Equal(t, 0.0, UniquenessRatio(table.MustNew([]string{"a"}, nil), 0))
}

func TestVerdictValidate(t *testing.T) {
	tb := table.MustNew([]string{"Year", "Revenue"}, nil)
	v := Verdict{Kind: Panel, DateColumn: "Year", EntityColumn: "Company"}
	err := v.Validate(tb)
	require.Error(t, err)
	var cnf *ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, "Company", cnf.Column)

	assert.NoError(t, Verdict{Kind: TimeSeries, DateColumn: "Year"}.Validate(tb))
	assert.NoError(t, Verdict{Kind: CrossSectional}.Validate(tb))
}

func TestKindText(t *testing.T) {
	b, err := json.Marshal(Verdict{Kind: Panel, DateColumn: "Year", EntityColumn: "Company"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"Panel Data","date_column":"Year","entity_column":"Company"}`, string(b))

	var v Verdict
	require.NoError(t, yaml.Unmarshal([]byte("kind: Email Data\n"), &v))
	assert.Equal(t, Email, v.Kind)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"Spreadsheet"}`), &v))
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, "Panel Data (date=Year, entity=Company)", Verdict{Kind: Panel, DateColumn: "Year", EntityColumn: "Company"}.String())
	assert.Equal(t, "Cross-Sectional", Verdict{Kind: CrossSectional}.String())
}
