// Package sample holds measurements for a characteristic before they are analyzed
package sample

import (
	"fmt"
	"sync"
	"time"
)

// Point is a single measurement.  Time and Subgroup are optional.
type Point struct {
	Value    float64   `json:"value"`
	Time     time.Time `json:"time,omitempty"`
	Subgroup string    `json:"subgroup,omitempty"`
}

// Sample is an ordered snapshot of measurements for one characteristic
type Sample struct {
	Name   Name
	Points []Point
}

// Values returns the measurement values in order
func (s Sample) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// FromValues builds a sample of untagged points
func FromValues(name Name, values []float64) Sample {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Value: v}
	}
	return Sample{Name: name, Points: points}
}

// Collector keeps the most recent measurements of a characteristic in a fixed capacity window.
// Once full, each new point overwrites the oldest.  It is safe for concurrent use.
type Collector struct {
	name   Name
	mu     sync.RWMutex
	count  int
	points []Point
}

// CollectorOption configures a collector
type CollectorOption func(c *Collector) error

// NewCollector creates a collector holding at most capacity points
func NewCollector(name Name, capacity int, opts ...CollectorOption) (*Collector, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("collector must be initialized with a capacity >= 1")
	}
	c := &Collector{
		name:   name,
		points: make([]Point, capacity),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithValues initializes a collector from existing values.  The number of values does not have
// to equal the capacity.
func WithValues(values []float64) CollectorOption {
	return func(c *Collector) error {
		for _, v := range values {
			c.record(Point{Value: v})
		}
		return nil
	}
}

// Record adds a new point
func (c *Collector) Record(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(p)
}

func (c *Collector) record(p Point) {
	c.points[c.nextIndex()] = p
	c.count++
}

// nextIndex returns the slot of the oldest point, which is overwritten next
func (c *Collector) nextIndex() int {
	return c.count % len(c.points)
}

// Count returns the total number of points ever recorded, including overwritten ones
func (c *Collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Len returns the number of points currently held
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return min(c.count, len(c.points))
}

// Capacity returns the window size
func (c *Collector) Capacity() int {
	return len(c.points)
}

// Reset discards all points
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	clear(c.points)
}

// Snapshot returns a copy of the held points in temporal order from oldest to most recent.  The
// copy is independent of later Record calls.
func (c *Collector) Snapshot() Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Point
	switch {
	case c.count < len(c.points):
		out = make([]Point, c.count)
		copy(out, c.points[:c.count])
	default:
		out = make([]Point, 0, len(c.points))
		oldest := c.nextIndex()
		out = append(append(out, c.points[oldest:]...), c.points[:oldest]...)
	}
	return Sample{Name: c.name, Points: out}
}

// Values returns the held values in temporal order
func (c *Collector) Values() []float64 {
	return c.Snapshot().Values()
}

// Name returns the characteristic name
func (c *Collector) Name() Name {
	return c.name
}
