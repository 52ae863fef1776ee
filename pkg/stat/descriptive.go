package stat

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	gstat "gonum.org/v1/gonum/stat"
)

// d2 is the bias correction constant for a moving range of span 2
const d2 = 1.128

// Descriptive is an immutable summary of a sample.  StdDev is the sample standard deviation
// (N-1 denominator).  A single observation reports StdDev = 0.
type Descriptive struct {
	N           int     `json:"n"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stdDev"`
	PopStdDev   float64 `json:"popStdDev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Range       float64 `json:"range"`
	Median      float64 `json:"median"`
	MovingRange float64 `json:"movingRange"`
}

// WithinSigma estimates short term variation from the average moving range.  It is zero
// for fewer than two observations.
func (d Descriptive) WithinSigma() float64 {
	return d.MovingRange / d2
}

// Describe computes descriptive statistics over values.  It returns InsufficientDataError for
// an empty sample and InvalidSampleError if any value is NaN or infinite, or if the statistics
// overflow.  values is not modified.
func Describe(values []float64) (Descriptive, error) {
	if len(values) == 0 {
		return Descriptive{}, InsufficientDataError{Msg: "stat: sample has no observations"}
	}
	if err := CheckFinite(values); err != nil {
		return Descriptive{}, err
	}

	d := Descriptive{
		N:   len(values),
		Min: floats.Min(values),
		Max: floats.Max(values),
	}
	d.Range = d.Max - d.Min

	switch {
	case d.Min == d.Max:
		// every observation is identical, keep the result exact instead of accumulating
		// rounding error from the summation
		d.Mean = d.Min
		d.Median = d.Min
		return d, nil
	default:
		d.Mean, d.StdDev = gstat.MeanStdDev(values, nil)
		_, d.PopStdDev = gstat.PopMeanStdDev(values, nil)
	}

	median, err := stats.Median(stats.Float64Data(values))
	if err != nil {
		return Descriptive{}, fmt.Errorf("stat: failed to compute median: %w", err)
	}
	d.Median = median
	d.MovingRange = movingRange(values)

	for _, v := range []float64{d.Mean, d.StdDev, d.PopStdDev, d.Range, d.MovingRange} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Descriptive{}, InvalidSampleError{Msg: "stat: sample values are too large to summarize in float64", Index: -1}
		}
	}
	return d, nil
}

// CheckFinite returns an InvalidSampleError for the first NaN or infinite value
func CheckFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return InvalidSampleError{Msg: fmt.Sprintf("stat: value %v at index %d is not a finite number", v, i), Index: i}
		}
	}
	return nil
}

// movingRange returns the average absolute difference between consecutive observations
func movingRange(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	s := 0.0
	for i := 1; i < len(values); i++ {
		s += math.Abs(values[i] - values[i-1])
	}
	return s / float64(len(values)-1)
}
