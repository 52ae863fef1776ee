package stat

import (
	"fmt"
	"math"
)

// Classification is the qualitative capability grade of a Cpk value
type Classification string

const (
	Excellent        Classification = "excellent"
	Good             Classification = "good"
	Acceptable       Classification = "acceptable"
	NeedsImprovement Classification = "needs_improvement"
	Critical         Classification = "critical"
)

// Classify grades a Cpk value using the fixed table 1.67 / 1.33 / 1.00 / 0.67.  An infinite
// Cpk from a zero-variance process is excellent.
func Classify(cpk float64) Classification {
	switch {
	case math.IsNaN(cpk):
		return Critical
	case cpk >= 1.67:
		return Excellent
	case cpk >= 1.33:
		return Good
	case cpk >= 1.00:
		return Acceptable
	case cpk >= 0.67:
		return NeedsImprovement
	default:
		return Critical
	}
}

// AlertType is the decision of the threshold evaluator
type AlertType string

const (
	AlertNone      AlertType = "none"
	AlertWarning   AlertType = "warning"
	AlertCritical  AlertType = "critical"
	AlertExcellent AlertType = "excellent"
)

// Thresholds configure the alert evaluator.  They must satisfy Critical < Warning < Excellent.
type Thresholds struct {
	Warning   float64 `json:"warning" yaml:"warning"`
	Critical  float64 `json:"critical" yaml:"critical"`
	Excellent float64 `json:"excellent" yaml:"excellent"`
}

// DefaultThresholds returns warning 1.33, critical 1.00 and excellent 1.67
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 1.33, Critical: 1.00, Excellent: 1.67}
}

// Validate checks that every threshold is finite and the ordering holds
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Warning, t.Critical, t.Excellent} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return InvalidThresholdConfigError{Msg: fmt.Sprintf("stat: threshold %v must be a finite number", v)}
		}
	}
	if !(t.Critical < t.Warning && t.Warning < t.Excellent) {
		return InvalidThresholdConfigError{Msg: fmt.Sprintf("stat: thresholds must satisfy critical (%v) < warning (%v) < excellent (%v)", t.Critical, t.Warning, t.Excellent)}
	}
	return nil
}

// Evaluator maps a Cpk value to an alert decision
type Evaluator struct {
	t Thresholds
}

// NewEvaluator validates the thresholds and returns an evaluator
func NewEvaluator(t Thresholds) (*Evaluator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{t: t}, nil
}

// Thresholds returns the thresholds in use
func (e *Evaluator) Thresholds() Thresholds {
	return e.t
}

// Evaluate returns critical below the critical threshold, warning below the warning threshold,
// excellent at or above the excellent threshold, and none otherwise
func (e *Evaluator) Evaluate(cpk float64) AlertType {
	switch {
	case math.IsNaN(cpk) || cpk < e.t.Critical:
		return AlertCritical
	case cpk < e.t.Warning:
		return AlertWarning
	case cpk >= e.t.Excellent:
		return AlertExcellent
	default:
		return AlertNone
	}
}
