package rng

var _ RNG = &ShiftRNG{}

// ShiftRNG offsets the output of another generator by a fixed amount after a number of draws.  It
// models a process that goes out of control part way through a run.
type ShiftRNG struct {
	src   RNG
	after int
	shift float64
	n     int
}

func (r *ShiftRNG) Rand() float64 {
	v := r.src.Rand()
	if r.n >= r.after {
		v += r.shift
	}
	r.n++
	return v
}

// NewShiftRNG shifts the values of src by shift starting with draw number after (zero based)
func NewShiftRNG(src RNG, after int, shift float64) *ShiftRNG {
	return &ShiftRNG{src: src, after: after, shift: shift}
}
