package spc

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/BTBurke/spc/pkg/stat"
)

// Critical reports whether the output has any critical rule violation or a critical alert
func (o Output) Critical() bool {
	if o.AlertType == stat.AlertCritical {
		return true
	}
	for _, v := range o.Violations {
		if v.Severity == stat.SeverityCritical {
			return true
		}
	}
	return false
}

// WriteOutput writes the output as indented JSON or as a human readable summary
func WriteOutput(w io.Writer, out Output, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatText:
		return writeText(w, out)
	default:
		return fmt.Errorf("unknown format %s", format)
	}
}

func writeText(w io.Writer, out Output) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	d, c, l := out.Descriptive, out.Capability, out.ControlLimits
	rows := [][2]string{
		{"n", strconv.Itoa(d.N)},
		{"mean", formatFloat(d.Mean)},
		{"std dev", formatFloat(d.StdDev)},
		{"min / max", formatFloat(d.Min) + " / " + formatFloat(d.Max)},
		{"cp", formatIndex(c.Cp)},
		{"cpk", formatIndex(&c.Cpk)},
		{"pp", formatIndex(c.Pp)},
		{"ppk", formatIndex(&c.Ppk)},
		{"ca", formatIndex(c.Ca)},
		{"classification", string(c.Classification)},
		{"ucl / center / lcl", formatFloat(l.UCL) + " / " + formatFloat(l.Center) + " / " + formatFloat(l.LCL)},
		{"expected ppm", formatFloat(out.ExpectedPPM)},
		{"observed ppm", formatFloat(out.ObservedPPM)},
		{"alert", string(out.AlertType)},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	for _, v := range out.Violations {
		fmt.Fprintf(tw, "violation\t%s %s %s\n", v.Severity, v.Rule, joinInts(v.Indices))
	}
	for _, warning := range out.Warnings {
		fmt.Fprintf(tw, "warning\t%s\n", warning)
	}
	return tw.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func formatIndex(i *stat.Index) string {
	if i == nil {
		return "-"
	}
	if i.IsInf() {
		if i.Float() > 0 {
			return "+Inf"
		}
		return "-Inf"
	}
	return formatFloat(i.Float())
}

func joinInts(a []int) string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
