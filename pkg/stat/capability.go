package stat

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Index is a capability index.  When sigma is zero an index is infinite rather than NaN, so
// Index marshals +Inf and -Inf to the JSON strings "+Inf" and "-Inf".
type Index float64

// Float returns the index as a float64
func (i Index) Float() float64 {
	return float64(i)
}

// IsInf reports whether the index is the infinite sentinel in either direction
func (i Index) IsInf() bool {
	return math.IsInf(float64(i), 0)
}

func (i Index) MarshalJSON() ([]byte, error) {
	f := float64(i)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	case math.IsNaN(f):
		return nil, fmt.Errorf("stat: index is NaN")
	default:
		return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
	}
}

func (i *Index) UnmarshalJSON(b []byte) error {
	switch {
	case bytes.Equal(b, []byte(`"+Inf"`)):
		*i = Index(math.Inf(1))
	case bytes.Equal(b, []byte(`"-Inf"`)):
		*i = Index(math.Inf(-1))
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("stat: invalid index %s: %w", string(b), err)
		}
		*i = Index(f)
	}
	return nil
}

func indexPtr(f float64) *Index {
	i := Index(f)
	return &i
}

// SpecLimits are the engineering specification limits for a characteristic.  At least one
// of USL or LSL must be set.
type SpecLimits struct {
	USL    *float64 `json:"usl,omitempty"`
	LSL    *float64 `json:"lsl,omitempty"`
	Target *float64 `json:"target,omitempty"`
}

// Validate checks the limits.  A target outside [LSL, USL] is reported as a warning rather than
// an error.
func (s SpecLimits) Validate() ([]string, error) {
	if s.USL == nil && s.LSL == nil {
		return nil, MissingLimitError{Msg: "stat: at least one of USL or LSL is required"}
	}
	for name, v := range map[string]*float64{"usl": s.USL, "lsl": s.LSL, "target": s.Target} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return nil, InvalidLimitsError{Msg: fmt.Sprintf("stat: %s must be a finite number", name)}
		}
	}
	if s.USL != nil && s.LSL != nil && *s.USL <= *s.LSL {
		return nil, InvalidLimitsError{Msg: fmt.Sprintf("stat: usl %v must be greater than lsl %v", *s.USL, *s.LSL)}
	}

	var warnings []string
	if s.Target != nil {
		if s.USL != nil && *s.Target > *s.USL {
			warnings = append(warnings, fmt.Sprintf("target %v is above usl %v", *s.Target, *s.USL))
		}
		if s.LSL != nil && *s.Target < *s.LSL {
			warnings = append(warnings, fmt.Sprintf("target %v is below lsl %v", *s.Target, *s.LSL))
		}
	}
	return warnings, nil
}

// SigmaMethod selects how short term sigma is estimated from a sample
type SigmaMethod string

const (
	// SigmaOverall uses the sample standard deviation
	SigmaOverall SigmaMethod = "overall"
	// SigmaMovingRange uses the average moving range divided by d2
	SigmaMovingRange SigmaMethod = "moving_range"
)

// ParseSigmaMethod converts a configuration string to a SigmaMethod
func ParseSigmaMethod(s string) (SigmaMethod, error) {
	switch SigmaMethod(s) {
	case SigmaOverall, SigmaMovingRange:
		return SigmaMethod(s), nil
	case "":
		return SigmaOverall, nil
	default:
		return "", InvalidParameterError{Msg: fmt.Sprintf("stat: unknown sigma method %q", s)}
	}
}

// CapabilityResult holds the capability and performance indices of a process.  Indices that
// cannot be computed from the supplied limits are nil.
type CapabilityResult struct {
	Cp             *Index         `json:"cp"`
	Cpk            Index          `json:"cpk"`
	Cpu            *Index         `json:"cpu"`
	Cpl            *Index         `json:"cpl"`
	Pp             *Index         `json:"pp"`
	Ppk            Index          `json:"ppk"`
	Ca             *Index         `json:"ca"`
	ShortTermSigma float64        `json:"shortTermSigma"`
	LongTermSigma  float64        `json:"longTermSigma"`
	Classification Classification `json:"classification"`
}

type capabilityConfig struct {
	method    SigmaMethod
	shortTerm *float64
	longTerm  *float64
}

// CapabilityOption customizes the sigma used by Capability
type CapabilityOption func(c *capabilityConfig) error

// WithSigmaMethod selects the short term sigma estimator.  The default is SigmaOverall.
func WithSigmaMethod(m SigmaMethod) CapabilityOption {
	return func(c *capabilityConfig) error {
		if _, err := ParseSigmaMethod(string(m)); err != nil {
			return err
		}
		c.method = m
		return nil
	}
}

// WithShortTermSigma overrides the sigma used for Cp and Cpk
func WithShortTermSigma(sigma float64) CapabilityOption {
	return func(c *capabilityConfig) error {
		if err := checkSigma(sigma); err != nil {
			return err
		}
		c.shortTerm = &sigma
		return nil
	}
}

// WithLongTermSigma sets a separately estimated long term sigma for Pp and Ppk.  Without it,
// Pp and Ppk use the short term sigma and equal Cp and Cpk.
func WithLongTermSigma(sigma float64) CapabilityOption {
	return func(c *capabilityConfig) error {
		if err := checkSigma(sigma); err != nil {
			return err
		}
		c.longTerm = &sigma
		return nil
	}
}

func checkSigma(sigma float64) error {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return InvalidParameterError{Msg: fmt.Sprintf("stat: sigma %v must be a finite non-negative number", sigma)}
	}
	return nil
}

// Capability computes Cp, Cpk, Pp, Ppk and Ca.  It requires at least two observations unless a
// short term sigma is supplied.  A zero sigma produces infinite indices, never NaN.
func Capability(d Descriptive, limits SpecLimits, opts ...CapabilityOption) (CapabilityResult, error) {
	cfg := capabilityConfig{method: SigmaOverall}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return CapabilityResult{}, err
		}
	}
	if _, err := limits.Validate(); err != nil {
		return CapabilityResult{}, err
	}
	if d.N == 0 {
		return CapabilityResult{}, InsufficientDataError{Msg: "stat: capability requires observations"}
	}

	var short float64
	switch {
	case cfg.shortTerm != nil:
		short = *cfg.shortTerm
	case d.N < 2:
		return CapabilityResult{}, InsufficientDataError{Msg: "stat: capability requires at least 2 observations to estimate sigma"}
	case cfg.method == SigmaMovingRange:
		short = d.WithinSigma()
	default:
		short = d.StdDev
	}
	long := short
	if cfg.longTerm != nil {
		long = *cfg.longTerm
	}

	r := CapabilityResult{
		ShortTermSigma: short,
		LongTermSigma:  long,
	}
	r.Cp, r.Cpu, r.Cpl, r.Cpk = indices(d.Mean, short, limits)
	r.Pp, _, _, r.Ppk = indices(d.Mean, long, limits)
	if limits.Target != nil && limits.USL != nil && limits.LSL != nil {
		r.Ca = indexPtr((d.Mean - *limits.Target) / ((*limits.USL - *limits.LSL) / 2.0))
	}
	r.Classification = Classify(r.Cpk.Float())
	return r, nil
}

// indices returns the potential index, the one-sided indices and the minimum one-sided index
// for a given sigma.  limits must already be validated.
func indices(mean float64, sigma float64, limits SpecLimits) (p *Index, upper *Index, lower *Index, k Index) {
	if limits.USL != nil && limits.LSL != nil {
		p = indexPtr(ratio(*limits.USL-*limits.LSL, 6.0*sigma))
	}
	if limits.USL != nil {
		upper = indexPtr(ratio(*limits.USL-mean, 3.0*sigma))
	}
	if limits.LSL != nil {
		lower = indexPtr(ratio(mean-*limits.LSL, 3.0*sigma))
	}
	switch {
	case upper != nil && lower != nil:
		k = Index(math.Min(upper.Float(), lower.Float()))
	case upper != nil:
		k = *upper
	default:
		k = *lower
	}
	return p, upper, lower, k
}

// ratio divides num by den, mapping division by zero to a signed infinity.  A zero numerator
// over a zero denominator is 0 so that a degenerate process sitting on a limit is critical.
func ratio(num, den float64) float64 {
	if den != 0 {
		return num / den
	}
	switch {
	case num > 0:
		return math.Inf(1)
	case num < 0:
		return math.Inf(-1)
	default:
		return 0.0
	}
}
