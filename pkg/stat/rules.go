package stat

import (
	"fmt"
	"iter"
	"slices"
)

// RuleID identifies a control chart rule
type RuleID string

const (
	// RuleBeyondLimits fires for a single point strictly outside the control limits
	RuleBeyondLimits RuleID = "beyond_limits"
	// RuleRun fires for RunLength consecutive points on the same side of the center line
	RuleRun RuleID = "run"
	// RuleTrend fires for TrendLength consecutive strictly increasing or decreasing points
	RuleTrend RuleID = "trend"
	// RuleZoneA fires when 2 of 3 consecutive points are beyond 2 sigma on the same side
	RuleZoneA RuleID = "zone_a"
	// RuleZoneB fires when 4 of 5 consecutive points are beyond 1 sigma on the same side
	RuleZoneB RuleID = "zone_b"
)

// Severity grades a rule violation
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

const (
	DefaultRunLength   = 7
	DefaultTrendLength = 6
)

// Violation records a rule that fired and the indices of the points involved
type Violation struct {
	Rule     RuleID   `json:"rule"`
	Indices  []int    `json:"indices"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RuleConfig tunes the detector.  Zero lengths use the defaults.  Zones enables the optional
// 2-of-3 and 4-of-5 zone rules.
type RuleConfig struct {
	RunLength   int  `json:"runLength,omitempty" yaml:"run-length"`
	TrendLength int  `json:"trendLength,omitempty" yaml:"trend-length"`
	Zones       bool `json:"zones,omitempty" yaml:"zones"`
}

// Detector evaluates a sequence of points against the configured rules.  It holds no state
// between calls and may be shared.
type Detector struct {
	cfg RuleConfig
}

// NewDetector applies defaults and validates the rule configuration
func NewDetector(cfg RuleConfig) (*Detector, error) {
	if cfg.RunLength == 0 {
		cfg.RunLength = DefaultRunLength
	}
	if cfg.TrendLength == 0 {
		cfg.TrendLength = DefaultTrendLength
	}
	if cfg.RunLength < 2 {
		return nil, InvalidParameterError{Msg: fmt.Sprintf("stat: run length %d must be at least 2", cfg.RunLength)}
	}
	if cfg.TrendLength < 2 {
		return nil, InvalidParameterError{Msg: fmt.Sprintf("stat: trend length %d must be at least 2", cfg.TrendLength)}
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the effective configuration
func (d *Detector) Config() RuleConfig {
	return d.cfg
}

// Violations lazily yields every violation in values, rule by rule in the order beyond limits,
// run, trend and then the zone rules.  The sequence can be iterated any number of times and
// always yields the same violations for the same input.
func (d *Detector) Violations(values []float64, limits ControlLimits) iter.Seq[Violation] {
	return func(yield func(Violation) bool) {
		if !beyondLimits(values, limits, yield) {
			return
		}
		if !runs(values, limits, d.cfg.RunLength, yield) {
			return
		}
		if !trends(values, limits, d.cfg.TrendLength, yield) {
			return
		}
		if !d.cfg.Zones {
			return
		}
		if !zone(values, limits, RuleZoneA, 2, 3, 2.0, yield) {
			return
		}
		zone(values, limits, RuleZoneB, 4, 5, 1.0, yield)
	}
}

// Detect collects all violations
func (d *Detector) Detect(values []float64, limits ControlLimits) []Violation {
	return slices.Collect(d.Violations(values, limits))
}

func beyondLimits(values []float64, limits ControlLimits, yield func(Violation) bool) bool {
	for i, x := range values {
		if !limits.Beyond(x) {
			continue
		}
		v := Violation{
			Rule:     RuleBeyondLimits,
			Indices:  []int{i},
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("point %d (%v) is outside control limits [%v, %v]", i, x, limits.LCL, limits.UCL),
		}
		if !yield(v) {
			return false
		}
	}
	return true
}

// runs reports each maximal run of at least n points on one side of the center line.  A point
// on the center line ends the run.
func runs(values []float64, limits ControlLimits, n int, yield func(Violation) bool) bool {
	start, side := 0, 0
	flush := func(end int) bool {
		if side == 0 || end-start < n {
			return true
		}
		where := "above"
		if side < 0 {
			where = "below"
		}
		return yield(Violation{
			Rule:     RuleRun,
			Indices:  span(start, end),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d consecutive points %s center line starting at %d", end-start, where, start),
		})
	}
	for i, x := range values {
		s := limits.Side(x)
		if s != 0 && s == side {
			continue
		}
		if !flush(i) {
			return false
		}
		start, side = i, s
	}
	return flush(len(values))
}

// trends reports each maximal strictly monotone stretch of at least n points.  Equal consecutive
// values and points on the center line end the stretch.
func trends(values []float64, limits ControlLimits, n int, yield func(Violation) bool) bool {
	start, dir := 0, 0
	flush := func(end int) bool {
		if dir == 0 || end-start < n {
			return true
		}
		where := "increasing"
		if dir < 0 {
			where = "decreasing"
		}
		return yield(Violation{
			Rule:     RuleTrend,
			Indices:  span(start, end),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d consecutive %s points starting at %d", end-start, where, start),
		})
	}
	for i, x := range values {
		if limits.Side(x) == 0 {
			if !flush(i) {
				return false
			}
			start, dir = i+1, 0
			continue
		}
		if i == start {
			continue
		}
		step := sign(x - values[i-1])
		if step != 0 && (dir == 0 || step == dir) {
			dir = step
			continue
		}
		if !flush(i) {
			return false
		}
		switch step {
		case 0:
			start, dir = i, 0
		default:
			// the turning point belongs to both stretches
			start, dir = i-1, step
		}
	}
	return flush(len(values))
}

// zone reports windows of size m ending at a point beyond the given number of sigmas where at
// least k points in the window are beyond it on the same side
func zone(values []float64, limits ControlLimits, rule RuleID, k int, m int, sigmas float64, yield func(Violation) bool) bool {
	for i := m - 1; i < len(values); i++ {
		for _, side := range []float64{1, -1} {
			if side*limits.Sigmas(values[i]) <= sigmas {
				continue
			}
			var hits []int
			for j := i - m + 1; j <= i; j++ {
				if side*limits.Sigmas(values[j]) > sigmas {
					hits = append(hits, j)
				}
			}
			if len(hits) < k {
				continue
			}
			v := Violation{
				Rule:     rule,
				Indices:  hits,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%d of %d points ending at %d are beyond %v sigma", len(hits), m, i, sigmas),
			}
			if !yield(v) {
				return false
			}
		}
	}
	return true
}

func span(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}
