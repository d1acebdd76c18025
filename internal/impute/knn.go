package impute

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

// fillKNN replaces each null with the mean of its k nearest rows, measured by
// nan-euclidean distance over the table's other numeric columns. Rows with no
// comparable features, or tables without other numeric columns, get the
// column mean.
func fillKNN(t *table.Table, idx, k int) ([]string, error) {
	col := t.Column(idx)
	if analysis.InferKind(col) != analysis.KindNumeric {
		return nil, ErrNotNumeric
	}
	target, present := parseColumn(col)

	var features [][]float64
	var featOK [][]bool
	for j := 0; j < t.NumCols(); j++ {
		if j == idx {
			continue
		}
		c := t.Column(j)
		if analysis.InferKind(c) != analysis.KindNumeric {
			continue
		}
		v, ok := parseColumn(c)
		features = append(features, v)
		featOK = append(featOK, ok)
	}

	var donors []float64
	for i, ok := range present {
		if ok {
			donors = append(donors, target[i])
		}
	}
	if len(donors) == 0 {
		return nil, ErrNoValues
	}
	fallback := FormatFloat(stat.Mean(donors, nil))

	type neighbour struct {
		row  int
		dist float64
	}
	out := append([]string(nil), col...)
	for i := range col {
		if !table.IsNull(col[i]) {
			continue
		}
		var near []neighbour
		for r := range col {
			if r == i || !present[r] {
				continue
			}
			if d, ok := nanEuclidean(features, featOK, i, r); ok {
				near = append(near, neighbour{r, d})
			}
		}
		if len(near) == 0 {
			out[i] = fallback
			continue
		}
		sort.SliceStable(near, func(a, b int) bool { return near[a].dist < near[b].dist })
		if len(near) > k {
			near = near[:k]
		}
		vals := make([]float64, len(near))
		for n, nb := range near {
			vals[n] = target[nb.row]
		}
		out[i] = FormatFloat(stat.Mean(vals, nil))
	}
	return out, nil
}

// nanEuclidean skips coordinates missing in either row and scales the sum by
// total/present coordinates.
func nanEuclidean(features [][]float64, ok [][]bool, a, b int) (float64, bool) {
	sum, used := 0.0, 0
	for f := range features {
		if !ok[f][a] || !ok[f][b] {
			continue
		}
		d := features[f][a] - features[f][b]
		sum += d * d
		used++
	}
	if used == 0 {
		return 0, false
	}
	return math.Sqrt(sum * float64(len(features)) / float64(used)), true
}

func parseColumn(col []string) ([]float64, []bool) {
	vals := make([]float64, len(col))
	ok := make([]bool, len(col))
	for i, c := range col {
		if table.IsNull(c) {
			continue
		}
		vals[i], ok[i] = analysis.ParseNumeric(c)
	}
	return vals, ok
}
