package rng

import (
	"math/rand/v2"
)

var _ RNG = &NormalRNG{}

// NormalRNG generates normally distributed measurements of an in-control process
type NormalRNG struct {
	mean  float64
	stdev float64
	r     *rand.Rand
}

func (r *NormalRNG) Rand() float64 {
	return r.r.NormFloat64()*r.stdev + r.mean
}

// NewNormalRNG returns a generator with the given mean and standard deviation.  The same seed
// always produces the same sequence.
func NewNormalRNG(mean float64, stdev float64, seed uint64) *NormalRNG {
	return &NormalRNG{
		mean:  mean,
		stdev: stdev,
		r:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}
