package analysis

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/airquality/internal/metrics"
)

// Summary describes one column over a group of rows. Missing readings are
// skipped; a group with no readings has NaN statistics and a zero Count.
type Summary struct {
	Max   float64
	Min   float64
	Mean  float64
	Std   float64 // sample standard deviation (n-1)
	Count int
}

func summarize(values []float64) Summary {
	xs := dropNaN(values)
	s := Summary{
		Max:   math.NaN(),
		Min:   math.NaN(),
		Mean:  math.NaN(),
		Std:   math.NaN(),
		Count: len(xs),
	}
	if len(xs) == 0 {
		return s
	}
	s.Max = floats.Max(xs)
	s.Min = floats.Min(xs)
	s.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		s.Std = stat.StdDev(xs, nil)
	}
	return s
}

func mean(values []float64) float64 {
	xs := dropNaN(values)
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// pearson correlates the rows where both x and y are present. Fewer than two
// such rows, or a constant column, gives NaN.
func pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func observeView(view string) func() {
	start := time.Now()
	return func() {
		metrics.ViewComputeLatency.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}
}
