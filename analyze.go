// Package spc computes statistical process control results for manufacturing measurements:
// descriptive statistics, capability indices, control limits, control chart rule violations
// and the resulting alert decision.
package spc

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/stat"
)

// Input is the strict request accepted by Analyze.  Optional fields are pointers so that an
// explicit zero can be told apart from an absent value.
type Input struct {
	Values          []float64        `json:"values"`
	Subgroups       []string         `json:"subgroups,omitempty"`
	USL             *float64         `json:"usl,omitempty"`
	LSL             *float64         `json:"lsl,omitempty"`
	Target          *float64         `json:"target,omitempty"`
	SigmaMultiplier *float64         `json:"sigmaMultiplier,omitempty"`
	SigmaMethod     stat.SigmaMethod `json:"sigmaMethod,omitempty"`
	LongTermSigma   *float64         `json:"longTermSigma,omitempty"`
	RuleConfig      *stat.RuleConfig `json:"ruleConfig,omitempty"`
	Thresholds      *stat.Thresholds `json:"thresholds,omitempty"`
	Product         string           `json:"product,omitempty"`
	Station         string           `json:"station,omitempty"`
	Characteristic  string           `json:"characteristic,omitempty"`
}

// Output is the complete result of one analysis
type Output struct {
	Descriptive   stat.Descriptive      `json:"descriptiveStats"`
	Capability    stat.CapabilityResult `json:"capabilityResult"`
	ControlLimits stat.ControlLimits    `json:"controlLimits"`
	Violations    []stat.Violation      `json:"violations"`
	AlertType     stat.AlertType        `json:"alertType"`
	ExpectedPPM   float64               `json:"expectedPpm"`
	ObservedPPM   float64               `json:"observedPpm"`
	SubgroupMeans []float64             `json:"subgroupMeans,omitempty"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// DecodeInput reads a JSON input document, rejecting unknown fields
func DecodeInput(r io.Reader) (Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("spc: invalid input: %w", err)
	}
	return in, nil
}

// Limits returns the specification limits of the input
func (in Input) Limits() stat.SpecLimits {
	return stat.SpecLimits{USL: in.USL, LSL: in.LSL, Target: in.Target}
}

// Name identifies the characteristic the input measures
func (in Input) Name() sample.Name {
	c := in.Characteristic
	if c == "" {
		c = "cpk"
	}
	return sample.ForStation(c, in.Product, in.Station)
}

// Validate rejects malformed input before any calculation runs.  It returns the same typed errors
// the calculations would.
func (in Input) Validate() error {
	if len(in.Values) == 0 {
		return stat.InsufficientDataError{Msg: "spc: values must contain at least one observation"}
	}
	if err := stat.CheckFinite(in.Values); err != nil {
		return err
	}
	if in.Subgroups != nil && len(in.Subgroups) != len(in.Values) {
		return stat.InvalidParameterError{Msg: fmt.Sprintf("spc: %d subgroup ids given for %d values", len(in.Subgroups), len(in.Values))}
	}
	if _, err := in.Limits().Validate(); err != nil {
		return err
	}
	if k := in.SigmaMultiplier; k != nil && (math.IsNaN(*k) || math.IsInf(*k, 0) || *k <= 0) {
		return stat.InvalidParameterError{Msg: fmt.Sprintf("spc: sigma multiplier %v must be a positive number", *k)}
	}
	if _, err := stat.ParseSigmaMethod(string(in.SigmaMethod)); err != nil {
		return err
	}
	if s := in.LongTermSigma; s != nil && (math.IsNaN(*s) || math.IsInf(*s, 0) || *s < 0) {
		return stat.InvalidParameterError{Msg: fmt.Sprintf("spc: long term sigma %v must be a finite non-negative number", *s)}
	}
	if in.RuleConfig != nil {
		if _, err := stat.NewDetector(*in.RuleConfig); err != nil {
			return err
		}
	}
	if in.Thresholds != nil {
		if err := in.Thresholds.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Analyze runs the full pipeline over the input: describe, capability, control limits, rule
// violations and alert evaluation.  It is a pure function of its input and safe for concurrent
// use.  The values slice is not modified.
func Analyze(in Input) (Output, error) {
	if err := in.Validate(); err != nil {
		return Output{}, err
	}
	limits := in.Limits()
	warnings, _ := limits.Validate()

	d, err := stat.Describe(in.Values)
	if err != nil {
		return Output{}, err
	}

	opts := []stat.CapabilityOption{stat.WithSigmaMethod(sigmaMethod(in.SigmaMethod))}
	if in.LongTermSigma != nil {
		opts = append(opts, stat.WithLongTermSigma(*in.LongTermSigma))
	}
	capability, err := stat.Capability(d, limits, opts...)
	if err != nil {
		return Output{}, err
	}

	k := stat.DefaultSigmaMultiplier
	if in.SigmaMultiplier != nil {
		k = *in.SigmaMultiplier
	}
	cl, err := stat.NewControlLimitsSigma(d, capability.ShortTermSigma, k)
	if err != nil {
		return Output{}, err
	}

	var rules stat.RuleConfig
	if in.RuleConfig != nil {
		rules = *in.RuleConfig
	}
	detector, err := stat.NewDetector(rules)
	if err != nil {
		return Output{}, err
	}

	thresholds := stat.DefaultThresholds()
	if in.Thresholds != nil {
		thresholds = *in.Thresholds
	}
	evaluator, err := stat.NewEvaluator(thresholds)
	if err != nil {
		return Output{}, err
	}

	violations := detector.Detect(in.Values, cl)
	if violations == nil {
		violations = []stat.Violation{}
	}

	out := Output{
		Descriptive:   d,
		Capability:    capability,
		ControlLimits: cl,
		Violations:    violations,
		AlertType:     evaluator.Evaluate(capability.Cpk.Float()),
		ExpectedPPM:   stat.ExpectedPPM(d.Mean, capability.LongTermSigma, limits),
		ObservedPPM:   stat.ObservedPPM(in.Values, limits),
		Warnings:      warnings,
	}
	if in.Subgroups != nil {
		out.SubgroupMeans = sample.Means(in.points())
	}
	return out, nil
}

func (in Input) points() []sample.Point {
	points := make([]sample.Point, len(in.Values))
	for i, v := range in.Values {
		points[i] = sample.Point{Value: v}
		if i < len(in.Subgroups) {
			points[i].Subgroup = in.Subgroups[i]
		}
	}
	return points
}

func sigmaMethod(m stat.SigmaMethod) stat.SigmaMethod {
	if m == "" {
		return stat.SigmaOverall
	}
	return m
}
