package stat

import (
	"fmt"
	"math"
)

// DefaultSigmaMultiplier is the conventional 3 sigma control limit width
const DefaultSigmaMultiplier = 3.0

// ControlLimits are the statistical limits of a control chart.  They are derived from the process
// itself, unlike the specification limits.
type ControlLimits struct {
	UCL    float64 `json:"ucl"`
	LCL    float64 `json:"lcl"`
	Center float64 `json:"center"`
	Sigma  float64 `json:"sigma"`
	K      float64 `json:"k"`
}

// NewControlLimits returns mean +/- k*sigma using the sample standard deviation.  A k of zero
// uses DefaultSigmaMultiplier.
func NewControlLimits(d Descriptive, k float64) (ControlLimits, error) {
	return NewControlLimitsSigma(d, d.StdDev, k)
}

// NewControlLimitsSigma is NewControlLimits with an explicit sigma, e.g. a moving range estimate
func NewControlLimitsSigma(d Descriptive, sigma float64, k float64) (ControlLimits, error) {
	if d.N == 0 {
		return ControlLimits{}, InsufficientDataError{Msg: "stat: control limits require observations"}
	}
	if k == 0 {
		k = DefaultSigmaMultiplier
	}
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		return ControlLimits{}, InvalidParameterError{Msg: fmt.Sprintf("stat: sigma multiplier %v must be a positive number", k)}
	}
	if err := checkSigma(sigma); err != nil {
		return ControlLimits{}, err
	}
	return ControlLimits{
		UCL:    d.Mean + k*sigma,
		LCL:    d.Mean - k*sigma,
		Center: d.Mean,
		Sigma:  sigma,
		K:      k,
	}, nil
}

// Beyond reports whether x lies strictly outside the control limits
func (c ControlLimits) Beyond(x float64) bool {
	return x > c.UCL || x < c.LCL
}

// Side returns +1 above the center line, -1 below and 0 on it
func (c ControlLimits) Side(x float64) int {
	switch {
	case x > c.Center:
		return 1
	case x < c.Center:
		return -1
	default:
		return 0
	}
}

// Sigmas returns the signed distance of x from the center line in units of sigma.  With zero
// sigma any point off the center is infinitely far.
func (c ControlLimits) Sigmas(x float64) float64 {
	return ratio(x-c.Center, c.Sigma)
}
