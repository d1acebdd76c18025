package organize

import (
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// Balance summarizes observations per entity.
type Balance struct {
	Entities int  `json:"entities" yaml:"entities"`
	Balanced bool `json:"balanced" yaml:"balanced"`
	// MinObs and MaxObs are equal when Balanced.
	MinObs int            `json:"min_obs" yaml:"min_obs"`
	MaxObs int            `json:"max_obs" yaml:"max_obs"`
	Counts map[string]int `json:"counts,omitempty" yaml:"counts,omitempty"`
}

// panel sorts by (entity, date). Rows with a null entity sort last and are
// left out of the balance counts.
func panel(t *table.Table, v structure.Verdict) *Result {
	res := &Result{Table: t, Verdict: v}

	date, note := recoverColumn(t, v.DateColumn, func() string { return structure.FindDateColumn(t) })
	if date == "" {
		res.Err = &ColumnNotFoundError{Column: v.DateColumn}
		return res
	}
	if note != "" {
		res.Notes = append(res.Notes, note)
	}
	entity, note := recoverColumn(t, v.EntityColumn, func() string { return structure.FindEntityColumn(t, date) })
	if entity == "" || entity == date {
		res.Err = &ColumnNotFoundError{Column: v.EntityColumn}
		return res
	}
	if note != "" {
		res.Notes = append(res.Notes, note)
	}
	res.Verdict.DateColumn, res.Verdict.EntityColumn = date, entity

	ents := t.Column(t.Index(entity))
	raw := t.Column(t.Index(date))
	times := make([]time.Time, len(raw))
	valid := make([]bool, len(raw))
	for i, s := range raw {
		if !table.IsNull(s) {
			times[i], valid[i] = structure.ParseDateCell(date, s)
		}
	}
	key := func(i int) string { return strings.TrimSpace(ents[i]) }

	res.Table = t.SortStable(func(a, b int) bool {
		na, nb := table.IsNull(ents[a]), table.IsNull(ents[b])
		if na != nb {
			return nb
		}
		if ka, kb := key(a), key(b); ka != kb {
			return ka < kb
		}
		if valid[a] != valid[b] {
			return valid[a]
		}
		return valid[a] && times[a].Before(times[b])
	})
	res.Organized = true
	res.Balance = balance(ents)
	return res
}

func balance(entities []string) *Balance {
	counts := make(map[string]int)
	for _, e := range entities {
		if !table.IsNull(e) {
			counts[strings.TrimSpace(e)]++
		}
	}
	b := &Balance{Entities: len(counts), Counts: counts}
	if len(counts) == 0 {
		return b
	}
	obs := make([]int, 0, len(counts))
	for _, c := range counts {
		obs = append(obs, c)
	}
	sort.Ints(obs)
	b.MinObs, b.MaxObs = obs[0], obs[len(obs)-1]
	b.Balanced = b.MinObs == b.MaxObs
	return b
}
