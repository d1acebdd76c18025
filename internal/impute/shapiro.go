package impute

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	swMinN = 3
	swMaxN = 5000
)

// ShapiroWilk returns the W statistic and p-value for the null hypothesis that
// x is normally distributed, using Royston's approximation (AS R94). It needs
// 3 to 5000 values with non-zero spread.
func ShapiroWilk(x []float64) (w, p float64, err error) {
	n := len(x)
	if n < swMinN || n > swMaxN {
		return 0, 0, fmt.Errorf("%w: need %d..%d values, have %d", ErrStatisticalTest, swMinN, swMaxN, n)
	}
	xs := append([]float64(nil), x...)
	sort.Float64s(xs)
	if xs[n-1]-xs[0] < 1e-12*math.Max(1, math.Abs(xs[n-1])) {
		return 0, 0, fmt.Errorf("%w: zero variance", ErrStatisticalTest)
	}

	a := swCoefficients(n)
	mean := stat.Mean(xs, nil)
	num, den := 0.0, 0.0
	for i, v := range xs {
		num += a[i] * v
		den += (v - mean) * (v - mean)
	}
	w = num * num / den
	if w > 1 {
		w = 1
	}
	return w, swPValue(w, n), nil
}

// swCoefficients returns the n antisymmetric weights a_1..a_n.
func swCoefficients(n int) []float64 {
	a := make([]float64, n)
	if n == 3 {
		a[0], a[2] = -math.Sqrt2/2, math.Sqrt2/2
		return a
	}
	m := make([]float64, n)
	mm := 0.0
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		mm += m[i] * m[i]
	}
	u := 1 / math.Sqrt(float64(n))
	an := m[n-1]/math.Sqrt(mm) + poly(u, 0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056)
	a[n-1], a[0] = an, -an

	lo, phi := 1, 0.0
	if n > 5 {
		an1 := m[n-2]/math.Sqrt(mm) + poly(u, 0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633)
		a[n-2], a[1] = an1, -an1
		phi = (mm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
		lo = 2
	} else {
		phi = (mm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
	}
	for i := lo; i < n-lo; i++ {
		a[i] = m[i] / math.Sqrt(phi)
	}
	return a
}

func swPValue(w float64, n int) float64 {
	if w >= 1 {
		return 1
	}
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return math.Max(0, math.Min(1, p))
	}
	var z float64
	if n <= 11 {
		fn := float64(n)
		gamma := poly(fn, -2.273, 0.459)
		g := gamma - math.Log(1-w)
		if g <= 0 {
			return 0
		}
		mu := poly(fn, 0.5440, -0.39978, 0.025054, -0.0006714)
		sigma := math.Exp(poly(fn, 1.3822, -0.77857, 0.062767, -0.0020322))
		z = (-math.Log(g) - mu) / sigma
	} else {
		ln := math.Log(float64(n))
		mu := poly(ln, -1.5861, -0.31082, -0.083751, 0.0038915)
		sigma := math.Exp(poly(ln, -0.4803, -0.082676, 0.0030302))
		z = (math.Log(1-w) - mu) / sigma
	}
	return 1 - distuv.UnitNormal.CDF(z)
}

// poly evaluates c[0] + c[1]x + c[2]x^2 + ...
func poly(x float64, c ...float64) float64 {
	r := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}
