// Command simulate estimates how often each control chart rule fires on simulated process data.
// Without a shift the rates are false alarm rates of an in-control process.  With a shift they
// are detection rates for a mean shift after the given number of points.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/BTBurke/spc/pkg/rng"
	"github.com/BTBurke/spc/pkg/stat"
	"github.com/spf13/pflag"
)

type results struct {
	mu      sync.Mutex
	windows int
	hits    map[stat.RuleID]int
}

func (r *results) record(fired map[stat.RuleID]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows++
	for rule := range fired {
		r.hits[rule]++
	}
}

func main() {
	pf := pflag.NewFlagSet("simulate", pflag.ExitOnError)
	procs := pf.Int("procs", 4, "Number of worker goroutines")
	loops := pf.Int("loops", 10000, "Simulated windows per worker")
	window := pf.Int("window", 125, "Points per simulated window")
	k := pf.Float64("sigma-multiplier", stat.DefaultSigmaMultiplier, "Width of the control limits in standard deviations")
	shift := pf.Float64("shift", 0, "Mean shift in standard deviations")
	after := pf.Int("after", 0, "Apply the shift after this many points")
	runLength := pf.Int("run-length", stat.DefaultRunLength, "Run rule length")
	trendLength := pf.Int("trend-length", stat.DefaultTrendLength, "Trend rule length")
	zones := pf.Bool("zones", false, "Apply the zone rules")
	seed := pf.Uint64("seed", 1, "Seed of the first worker")
	out := pf.StringP("out", "o", "", "Also write the rates to this file")
	pf.Parse(os.Args[1:])

	detector, err := stat.NewDetector(stat.RuleConfig{RunLength: *runLength, TrendLength: *trendLength, Zones: *zones})
	if err != nil {
		log.Fatalf("invalid rule configuration: %v", err)
	}
	limits, err := stat.NewControlLimitsSigma(stat.Descriptive{N: *window}, 1, *k)
	if err != nil {
		log.Fatalf("invalid control limits: %v", err)
	}

	res := &results{hits: make(map[stat.RuleID]int)}
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *procs; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			normal := rng.NewNormalRNG(0, 1, seed)
			for j := 0; j < *loops; j++ {
				values := rng.Fill(rng.NewShiftRNG(normal, *after, *shift), *window)
				fired := make(map[stat.RuleID]bool)
				for v := range detector.Violations(values, limits) {
					fired[v.Rule] = true
				}
				res.record(fired)
			}
		}(*seed + uint64(i))
	}
	wg.Wait()
	log.Printf("simulated %d windows in %v", res.windows, time.Since(start))

	var b bytes.Buffer
	rules := []stat.RuleID{stat.RuleBeyondLimits, stat.RuleRun, stat.RuleTrend}
	if *zones {
		rules = append(rules, stat.RuleZoneA, stat.RuleZoneB)
	}
	for rule := range res.hits {
		if !slices.Contains(rules, rule) {
			rules = append(rules, rule)
		}
	}
	for _, rule := range rules {
		fmt.Fprintf(&b, "%-14s p=%1.5f hits=%d\n", rule, float64(res.hits[rule])/float64(res.windows), res.hits[rule])
	}
	fmt.Print(b.String())
	if *out != "" {
		if err := os.WriteFile(*out, b.Bytes(), 0644); err != nil {
			log.Fatalf("could not write results: %v", err)
		}
	}
}
