package stat

import (
	"gonum.org/v1/gonum/stat/distuv"
)

const million = 1e6

// ExpectedPPM returns the expected nonconforming parts per million for a normally distributed
// process with the given mean and sigma.  A zero sigma process is either entirely in or
// entirely out of specification.
func ExpectedPPM(mean float64, sigma float64, limits SpecLimits) float64 {
	if sigma == 0 {
		if outside(mean, limits) {
			return million
		}
		return 0.0
	}
	n := distuv.Normal{Mu: mean, Sigma: sigma}
	p := 0.0
	if limits.LSL != nil {
		p += n.CDF(*limits.LSL)
	}
	if limits.USL != nil {
		p += n.Survival(*limits.USL)
	}
	return p * million
}

// ObservedPPM returns the fraction of values outside the specification limits scaled to
// parts per million
func ObservedPPM(values []float64, limits SpecLimits) float64 {
	if len(values) == 0 {
		return 0.0
	}
	count := 0
	for _, v := range values {
		if outside(v, limits) {
			count++
		}
	}
	return float64(count) / float64(len(values)) * million
}

func outside(x float64, limits SpecLimits) bool {
	return (limits.USL != nil && x > *limits.USL) || (limits.LSL != nil && x < *limits.LSL)
}
