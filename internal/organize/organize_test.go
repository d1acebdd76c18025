package organize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func salesTable() *table.Table {
	return table.MustNew([]string{"Date", "Sales"}, [][]string{
		{"2024-01-03", "30"},
		{"not a date", "99"},
		{"2024-01-01", "10"},
		{"", "0"},
		{"2024-01-02", "20"},
	})
}

func TestTimeSeriesSortsAndCoerces(t *testing.T) {
	v := structure.Verdict{Kind: structure.TimeSeries, DateColumn: "Date"}
	res := Organize(salesTable(), v, Options{})
	require.NoError(t, res.Err)
	require.True(t, res.Organized)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "", ""}, res.Table.Column(0))
	assert.Equal(t, []string{"10", "20", "30", "99", "0"}, res.Table.Column(1))
	require.NotNil(t, res.Span)
	assert.Equal(t, 3, res.Span.Valid)
	assert.Equal(t, 1, res.Span.Invalid)
	assert.Equal(t, 2.0, res.Span.Days())
}

func TestTimeSeriesDescending(t *testing.T) {
	v := structure.Verdict{Kind: structure.TimeSeries, DateColumn: "Date"}
	res := Organize(salesTable(), v, Options{Descending: true})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-02", "2024-01-01", "", ""}, res.Table.Column(0))
}

func TestTimeSeriesTimestampsStayRFC3339(t *testing.T) {
	in := table.MustNew([]string{"ts", "v"}, [][]string{{"2024-01-01 10:30:00", "1"}, {"2024-01-01 09:00:00", "2"}})
	res := Organize(in, structure.Verdict{Kind: structure.TimeSeries, DateColumn: "ts"}, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"2024-01-01T09:00:00Z", "2024-01-01T10:30:00Z"}, res.Table.Column(0))
}

func TestTimeSeriesIdempotent(t *testing.T) {
	v := structure.Verdict{Kind: structure.TimeSeries, DateColumn: "Date"}
	once := Organize(salesTable(), v, Options{})
	twice := Organize(once.Table, once.Verdict, Options{})
	assert.True(t, once.Table.Equal(twice.Table))
}

func companyPanel() *table.Table {
	return table.MustNew([]string{"Company", "Year", "Revenue"}, [][]string{
		{"Google", "2023", "307"},
		{"Apple", "2023", "383"},
		{"Google", "2022", "283"},
		{"Apple", "2022", "394"},
	})
}

func TestPanelSortsAndBalances(t *testing.T) {
	v := structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}
	res := Organize(companyPanel(), v, Options{})
	require.NoError(t, res.Err)
	require.True(t, res.Organized)

	assert.Equal(t, []string{"Apple", "Apple", "Google", "Google"}, res.Table.Column(0))
	assert.Equal(t, []string{"2022", "2023", "2022", "2023"}, res.Table.Column(1))
	require.NotNil(t, res.Balance)
	assert.True(t, res.Balance.Balanced)
	assert.Equal(t, 2, res.Balance.Entities)
	assert.Equal(t, 2, res.Balance.MinObs)
	assert.Equal(t, 2, res.Balance.MaxObs)
}

func TestPanelUnbalanced(t *testing.T) {
	in := table.MustNew([]string{"Company", "Year", "Revenue"}, [][]string{
		{"Apple", "2022", "1"}, {"Apple", "2023", "2"}, {"Apple", "2024", "3"}, {"Google", "2023", "4"},
	})
	res := Organize(in, structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}, Options{})
	require.NoError(t, res.Err)
	assert.False(t, res.Balance.Balanced)
	assert.Equal(t, 1, res.Balance.MinObs)
	assert.Equal(t, 3, res.Balance.MaxObs)
	assert.Equal(t, map[string]int{"Apple": 3, "Google": 1}, res.Balance.Counts)
}

func TestPanelIdempotent(t *testing.T) {
	v := structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}
	once := Organize(companyPanel(), v, Options{})
	twice := Organize(once.Table, v, Options{})
	assert.True(t, once.Table.Equal(twice.Table))
}

func TestPanelRecoversSuffixedColumns(t *testing.T) {
	in := table.MustNew([]string{"Company_1", "Year_1", "Revenue"}, companyPanel().Rows())
	res := Organize(in, structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, "Year_1", res.Verdict.DateColumn)
	assert.Equal(t, "Company_1", res.Verdict.EntityColumn)
	assert.Len(t, res.Notes, 2)
	assert.Equal(t, "Apple", res.Table.Cell(0, 0))
}

func TestPanelRediscoversRenamedColumns(t *testing.T) {
	in := table.MustNew([]string{"Firm", "Period", "Revenue"}, companyPanel().Rows())
	res := Organize(in, structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, "Period", res.Verdict.DateColumn)
	assert.Equal(t, "Firm", res.Verdict.EntityColumn)
}

func TestPanelUnrecoverableReturnsInput(t *testing.T) {
	in := table.MustNew([]string{"a", "b"}, [][]string{{"x", "1"}, {"y", "2"}})
	res := Organize(in, structure.Verdict{Kind: structure.Panel, DateColumn: "Year", EntityColumn: "Company"}, Options{})
	assert.False(t, res.Organized)
	assert.Same(t, in, res.Table)
	var nf *ColumnNotFoundError
	require.ErrorAs(t, res.Err, &nf)
	assert.Equal(t, "Year", nf.Column)
}

func TestCrossSectionalSort(t *testing.T) {
	in := table.MustNew([]string{"name", "score"}, [][]string{{"a", "10"}, {"b", ""}, {"c", "2"}, {"d", "1,000"}})

	res := Organize(in, structure.Verdict{Kind: structure.CrossSectional}, Options{SortColumn: "score"})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"c", "a", "d", "b"}, res.Table.Column(0))

	res = Organize(in, structure.Verdict{Kind: structure.CrossSectional}, Options{SortColumn: "score", Descending: true})
	assert.Equal(t, []string{"d", "a", "c", "b"}, res.Table.Column(0))

	res = Organize(in, structure.Verdict{Kind: structure.CrossSectional}, Options{})
	assert.True(t, res.Organized)
	assert.True(t, in.Equal(res.Table))

	res = Organize(in, structure.Verdict{Kind: structure.CrossSectional}, Options{SortColumn: "missing"})
	assert.False(t, res.Organized)
	assert.Error(t, res.Err)
}

func TestGeneralPassesThrough(t *testing.T) {
	in := salesTable()
	res := Organize(in, structure.Verdict{Kind: structure.General}, Options{})
	assert.NoError(t, res.Err)
	assert.False(t, res.Organized)
	assert.Same(t, in, res.Table)
}

func TestUnknownKind(t *testing.T) {
	res := Organize(salesTable(), structure.Verdict{Kind: structure.Kind(42)}, Options{})
	assert.Error(t, res.Err)
}

func TestEmailUsesConfig(t *testing.T) {
	in := table.MustNew([]string{"From", "Subject", "Date"}, [][]string{
		{"noreply@promo.example.com", "FREE WINNER!!! CLICK HERE NOW", "2024-01-01"},
	})
	cfg := email.DefaultConfig()
	cfg.SpamThreshold = 50
	res := Organize(in, structure.Verdict{Kind: structure.Email, DateColumn: "Date"}, Options{Email: &cfg})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Email)
	assert.Equal(t, 1, res.Email.SpamCount)
	assert.Equal(t, "true", res.Table.Cell(0, res.Table.Index(email.ColIsSpam)))

	res = Organize(in, structure.Verdict{Kind: structure.Email, DateColumn: "Date"}, Options{})
	assert.Equal(t, 0, res.Email.SpamCount)
}
