// Package rng generates reproducible process measurements for simulation and tests
package rng

// RNG is a random number generator
type RNG interface {
	Rand() float64
}

// Fill draws n values from r
func Fill(r RNG, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Rand()
	}
	return out
}
