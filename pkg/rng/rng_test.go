package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestNormalRNG(t *testing.T) {
	val := Fill(NewNormalRNG(5.0, 1.0, 42), 10000)
	mean, sd := stat.MeanStdDev(val, nil)
	assert.InDelta(t, 5.0, mean, 0.05)
	assert.InDelta(t, 1.0, sd, 0.05)
}

func TestNormalRNGSeed(t *testing.T) {
	a := Fill(NewNormalRNG(0, 1, 7), 20)
	b := Fill(NewNormalRNG(0, 1, 7), 20)
	c := Fill(NewNormalRNG(0, 1, 8), 20)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

type constant float64

func (c constant) Rand() float64 { return float64(c) }

func TestShiftRNG(t *testing.T) {
	r := NewShiftRNG(constant(1), 3, 0.5)
	assert.Equal(t, []float64{1, 1, 1, 1.5, 1.5}, Fill(r, 5))
}
