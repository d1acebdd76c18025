package email

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Derived column names appended by Organize.
const (
	ColThreadID      = "Thread_ID"
	ColResponseHours = "Response_Time_Hours"
	ColPriority      = "Priority_Score"
	ColSpamScore     = "Spam_Score"
	ColIsSpam        = "Is_Spam"
)

// bodyColumns are tried in order for the message body.
var bodyColumns = []string{"Body_Preview", "Body", "Content", "Message", "Text", "Snippet"}

const topSenders = 5

// SenderCount is one row of the top-sender summary.
type SenderCount struct {
	Sender string `json:"sender" yaml:"sender"`
	Count  int    `json:"count" yaml:"count"`
}

// Summary describes an organized mailbox.
type Summary struct {
	Messages         int           `json:"messages" yaml:"messages"`
	Threads          int           `json:"threads" yaml:"threads"`
	LargestThread    int           `json:"largest_thread" yaml:"largest_thread"`
	SpamCount        int           `json:"spam_count" yaml:"spam_count"`
	Replies          int           `json:"replies" yaml:"replies"`
	AvgResponseHours float64       `json:"avg_response_hours" yaml:"avg_response_hours"`
	TopSenders       []SenderCount `json:"top_senders,omitempty" yaml:"top_senders,omitempty"`
}

type mailColumns struct {
	from, to, subject, date, body int
}

func resolve(t *table.Table, dateCol string) mailColumns {
	c := mailColumns{
		from:    t.IndexFold("From"),
		to:      t.IndexFold("To"),
		subject: t.IndexFold("Subject"),
		date:    -1,
		body:    -1,
	}
	if dateCol != "" {
		c.date = t.Index(dateCol)
	}
	if c.date < 0 {
		c.date = t.IndexFold("Date")
	}
	for _, b := range bodyColumns {
		if i := t.IndexFold(b); i >= 0 {
			c.body = i
			break
		}
	}
	return c
}

func cell(t *table.Table, row, col int) string {
	if col < 0 {
		return ""
	}
	v := t.Cell(row, col)
	if table.IsNull(v) {
		return ""
	}
	return v
}

// message reads the scoring fields of one row.
func (c mailColumns) message(t *table.Table, row int) Message {
	return Message{
		From:    cell(t, row, c.from),
		To:      cell(t, row, c.to),
		Subject: cell(t, row, c.subject),
		Body:    cell(t, row, c.body),
	}
}

// Organize sorts messages chronologically (undated rows last, original order
// kept among ties) and sets the thread, response time, priority and spam
// columns. Existing derived columns are overwritten, so the output is a fixed
// point of Organize.
func Organize(t *table.Table, dateCol string, cfg Config) (*table.Table, *Summary, error) {
	if t.Empty() {
		return t, &Summary{}, nil
	}
	cols := resolve(t, dateCol)
	times := make([]time.Time, t.NumRows())
	valid := make([]bool, t.NumRows())
	if cols.date >= 0 {
		for i := range times {
			times[i], valid[i] = analysis.ParseTime(cell(t, i, cols.date))
		}
		t = t.SortStable(func(a, b int) bool {
			if valid[a] != valid[b] {
				return valid[a]
			}
			return valid[a] && times[a].Before(times[b])
		})
		times = make([]time.Time, t.NumRows())
		for i := range times {
			times[i], valid[i] = analysis.ParseTime(cell(t, i, cols.date))
		}
	}

	n := t.NumRows()
	threadIDs := make([]string, n)
	response := make([]string, n)
	priority := make([]string, n)
	spamScore := make([]string, n)
	isSpam := make([]string, n)

	sum := &Summary{Messages: n}
	last := make(map[string]time.Time)
	sizes := make(map[string]int)
	senders := make(map[string]int)
	var deltas []float64

	for i := 0; i < n; i++ {
		m := cols.message(t, i)
		id := ThreadID(m.Subject)
		threadIDs[i] = id
		sizes[id]++
		if valid[i] {
			if prev, ok := last[id]; ok {
				h := times[i].Sub(prev).Hours()
				response[i] = formatHours(h)
				deltas = append(deltas, h)
			}
			last[id] = times[i]
		}
		priority[i] = strconv.Itoa(PriorityScore(m, cfg))
		sa := AssessSpam(m, cfg)
		spamScore[i] = strconv.Itoa(sa.Score)
		isSpam[i] = strconv.FormatBool(sa.IsSpam)
		if sa.IsSpam {
			sum.SpamCount++
		}
		if s := SenderAddress(m.From); s != "" {
			senders[s]++
		}
	}

	var err error
	for _, c := range []struct {
		name   string
		values []string
	}{
		{ColThreadID, threadIDs},
		{ColResponseHours, response},
		{ColPriority, priority},
		{ColSpamScore, spamScore},
		{ColIsSpam, isSpam},
	} {
		if t, err = t.WithColumn(c.name, c.values); err != nil {
			return nil, nil, err
		}
	}

	sum.Threads = len(sizes)
	for _, s := range sizes {
		if s > sum.LargestThread {
			sum.LargestThread = s
		}
	}
	sum.Replies = len(deltas)
	if len(deltas) > 0 {
		sum.AvgResponseHours = round2(stat.Mean(deltas, nil))
	}
	sum.TopSenders = rankSenders(senders)
	return t, sum, nil
}

// Reflag recomputes Is_Spam from the stored Spam_Score against a new
// threshold without re-running the heuristics. Unparseable scores are not spam.
func Reflag(t *table.Table, threshold int) (*table.Table, int, error) {
	idx := t.Index(ColSpamScore)
	if idx < 0 {
		return t, 0, &structure.ColumnNotFoundError{Column: ColSpamScore}
	}
	flags := make([]string, t.NumRows())
	flagged := 0
	for i := range flags {
		s, err := strconv.Atoi(strings.TrimSpace(t.Cell(i, idx)))
		spam := err == nil && s >= threshold
		if spam {
			flagged++
		}
		flags[i] = strconv.FormatBool(spam)
	}
	out, err := t.WithColumn(ColIsSpam, flags)
	if err != nil {
		return t, 0, err
	}
	return out, flagged, nil
}

func rankSenders(counts map[string]int) []SenderCount {
	out := make([]SenderCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, SenderCount{Sender: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Sender < out[j].Sender
	})
	if len(out) > topSenders {
		out = out[:topSenders]
	}
	return out
}

func formatHours(h float64) string {
	return strconv.FormatFloat(round2(h), 'f', 2, 64)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
