// Package tokenize turns raw text into a RawTable by scoring candidate delimiters.
package tokenize

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

var (
	// ErrNoStructure marks a degraded result: no delimiter produced at least
	// two columns and two lines, so the text became a single Content column.
	ErrNoStructure = errors.New("no tabular structure detected")
	// ErrBinaryInput rejects input that is not text.
	ErrBinaryInput = errors.New("input is not text")
	// ErrEmptyInput marks an empty table: nothing to classify.
	ErrEmptyInput = errors.New("empty input")
)

// Delimiter identifies the separator chosen for a table.
type Delimiter int

const (
	DelimNone Delimiter = iota
	DelimTab
	DelimMultiSpace
	DelimPipe
	DelimComma
	DelimSemicolon
)

func (d Delimiter) String() string {
	switch d {
	case DelimTab:
		return "tab"
	case DelimMultiSpace:
		return "multi-space"
	case DelimPipe:
		return "pipe"
	case DelimComma:
		return "comma"
	case DelimSemicolon:
		return "semicolon"
	default:
		return "none"
	}
}

const (
	// ScanPrefix bounds how many characters are scored.
	ScanPrefix = 1000
	// MinOccurrences is the significance threshold; a delimiter needs more hits than this.
	MinOccurrences = 5
	// ContentColumn names the single column of degraded output.
	ContentColumn = "Content"
)

// candidates in priority order; ties on count go to the earlier entry.
var candidates = []Delimiter{DelimTab, DelimMultiSpace, DelimPipe, DelimComma, DelimSemicolon}

var (
	multiSpaceRe  = regexp.MustCompile(` {2,}`)
	tabOrSpacesRe = regexp.MustCompile(`\t+| {2,}`)
	mdRuleRe      = regexp.MustCompile(`^[\s|:\-+]+$`)
)

// Result is a tokenized table plus how it was obtained.
type Result struct {
	Table     *table.Table
	Delimiter Delimiter
	// Degraded is set when the single Content column fallback was used.
	Degraded bool
	// Padded and Truncated count rows reconciled to the header width.
	Padded    int
	Truncated int
}

// Err reports why a result carries no usable structure: ErrEmptyInput for an
// empty table, ErrNoStructure for the degraded fallback, nil otherwise.
func (r *Result) Err() error {
	switch {
	case r == nil || r.Table.Empty():
		return ErrEmptyInput
	case r.Degraded:
		return ErrNoStructure
	}
	return nil
}

// Tokenize converts text into a table. Empty input yields an empty table and
// no error; binary input yields ErrBinaryInput. Unstructured text never fails:
// it degrades to one Content column holding each non-empty line.
func Tokenize(text string) (*Result, error) {
	if looksBinary(text) {
		return nil, ErrBinaryInput
	}
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return &Result{Table: &table.Table{}}, nil
	}
	lines := nonEmptyLines(text)

	if d, ok := Detect(text); ok {
		if res := splitWith(text, lines, d); res != nil {
			return res, nil
		}
	}
	if res := splitRegex(lines); res != nil {
		return res, nil
	}
	// Short inputs rarely pass the significance threshold; accept any
	// candidate that splits every line into the same number (>=2) of fields.
	for _, d := range candidates {
		if res := splitWith(text, lines, d); res != nil && res.Padded == 0 && res.Truncated == 0 {
			return res, nil
		}
	}
	return contentFallback(lines), nil
}

// Detect scores every candidate by occurrence count over the scan prefix and
// returns the highest scoring one above the significance threshold.
func Detect(text string) (Delimiter, bool) {
	prefix := scanPrefix(text)
	best, bestCount := DelimNone, MinOccurrences
	for _, d := range candidates {
		if c := count(prefix, d); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best, best != DelimNone
}

// scanPrefix returns the first ScanPrefix runes of text without decoding the rest.
func scanPrefix(text string) string {
	off := 0
	for n := 0; n < ScanPrefix && off < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	return text[:off]
}

func count(s string, d Delimiter) int {
	switch d {
	case DelimTab:
		return strings.Count(s, "\t")
	case DelimMultiSpace:
		return len(multiSpaceRe.FindAllStringIndex(s, -1))
	case DelimPipe:
		return strings.Count(s, "|")
	case DelimComma:
		return strings.Count(s, ",")
	case DelimSemicolon:
		return strings.Count(s, ";")
	}
	return 0
}

// FromRecords reconciles already-tabular records (spreadsheet or HTML rows)
// into a table. The first record is the header.
func FromRecords(records [][]string) *Result {
	var recs [][]string
	for _, r := range records {
		if !blankRecord(r) {
			recs = append(recs, r)
		}
	}
	if len(recs) == 0 {
		return &Result{Table: &table.Table{}}
	}
	return build(recs, DelimNone)
}

func splitWith(text string, lines []string, d Delimiter) *Result {
	var recs [][]string
	switch d {
	case DelimMultiSpace:
		for _, l := range lines {
			recs = append(recs, splitTrim(multiSpaceRe, l))
		}
	case DelimTab, DelimComma, DelimSemicolon, DelimPipe:
		r := csv.NewReader(strings.NewReader(text))
		r.Comma = map[Delimiter]rune{DelimTab: '\t', DelimComma: ',', DelimSemicolon: ';', DelimPipe: '|'}[d]
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = d != DelimTab
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil
			}
			if blankRecord(rec) {
				continue
			}
			recs = append(recs, rec)
		}
		if d == DelimPipe {
			recs = trimPipeBorders(recs)
		}
	default:
		return nil
	}
	if !structured(recs) {
		return nil
	}
	return build(recs, d)
}

func splitRegex(lines []string) *Result {
	recs := make([][]string, 0, len(lines))
	for _, l := range lines {
		recs = append(recs, splitTrim(tabOrSpacesRe, l))
	}
	if !structured(recs) {
		return nil
	}
	d := DelimMultiSpace
	for _, l := range lines {
		if strings.Contains(l, "\t") {
			d = DelimTab
			break
		}
	}
	return build(recs, d)
}

// structured requires two lines and a header with at least two non-empty fields.
func structured(recs [][]string) bool {
	if len(recs) < 2 {
		return false
	}
	filled := 0
	for _, c := range recs[0] {
		if strings.TrimSpace(c) != "" {
			filled++
		}
	}
	return filled >= 2
}

// build pads short rows and truncates long rows to the header width.
func build(recs [][]string, d Delimiter) *Result {
	header := table.NormalizeHeader(recs[0])
	res := &Result{Delimiter: d}
	rows := make([][]string, 0, len(recs)-1)
	for _, r := range recs[1:] {
		row := make([]string, len(header))
		for i := range row {
			if i < len(r) {
				row[i] = strings.TrimSpace(r[i])
			}
		}
		switch {
		case len(r) < len(header):
			res.Padded++
		case len(r) > len(header):
			res.Truncated++
		}
		rows = append(rows, row)
	}
	res.Table = table.MustNew(header, rows)
	return res
}

func contentFallback(lines []string) *Result {
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{strings.TrimSpace(l)}
	}
	return &Result{Table: table.MustNew([]string{ContentColumn}, rows), Degraded: true}
}

func trimPipeBorders(recs [][]string) [][]string {
	out := recs[:0]
	for _, r := range recs {
		if mdRuleRe.MatchString(strings.Join(r, "|")) {
			continue
		}
		if len(r) > 1 && strings.TrimSpace(r[0]) == "" {
			r = r[1:]
		}
		if len(r) > 1 && strings.TrimSpace(r[len(r)-1]) == "" {
			r = r[:len(r)-1]
		}
		out = append(out, r)
	}
	return out
}

func splitTrim(re *regexp.Regexp, line string) []string {
	parts := re.Split(strings.TrimSpace(line), -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func blankRecord(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// looksBinary flags NUL bytes or a large share of invalid UTF-8 in the first 8 KiB.
func looksBinary(s string) bool {
	if len(s) > 8<<10 {
		s = s[:8<<10]
	}
	if strings.IndexByte(s, 0) >= 0 {
		return true
	}
	bad := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			bad++
		}
		i += size
	}
	return len(s) > 0 && bad*10 > len(s)
}
