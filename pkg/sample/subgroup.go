package sample

import "gonum.org/v1/gonum/stat"

// Subgroup is a rational subgroup of consecutive measurements, e.g. five parts taken from the same
// hour of production
type Subgroup struct {
	ID     string
	Values []float64
}

// Mean returns the subgroup average
func (s Subgroup) Mean() float64 {
	if len(s.Values) == 0 {
		return 0.0
	}
	return stat.Mean(s.Values, nil)
}

// Subgroups groups points by subgroup id in order of first appearance.  Points without a
// subgroup id form their own single point subgroups.
func Subgroups(points []Point) []Subgroup {
	var out []Subgroup
	index := make(map[string]int)
	for _, p := range points {
		if p.Subgroup == "" {
			out = append(out, Subgroup{Values: []float64{p.Value}})
			continue
		}
		i, ok := index[p.Subgroup]
		if !ok {
			index[p.Subgroup] = len(out)
			out = append(out, Subgroup{ID: p.Subgroup, Values: []float64{p.Value}})
			continue
		}
		out[i].Values = append(out[i].Values, p.Value)
	}
	return out
}

// Means returns the subgroup averages of a sample in order, the input to an X-bar chart
func Means(points []Point) []float64 {
	groups := Subgroups(points)
	out := make([]float64, len(groups))
	for i, g := range groups {
		out[i] = g.Mean()
	}
	return out
}
