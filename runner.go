package spc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/store"
)

// Store persists analysis results
type Store interface {
	Save(ctx context.Context, r *store.Record) error
}

// Runner collects measurements for one characteristic and analyzes the current window on demand.
// Each analysis is persisted, its alert state tracked and changes announced on the event bus.
type Runner struct {
	cfg       *Config
	name      sample.Name
	collector *sample.Collector
	cache     *Cache
	tracker   *alert.Tracker
	store     Store
	metrics   *Metrics
	logger    *slog.Logger
	errors    ErrorReporter
}

// RunnerOption configures a Runner
type RunnerOption func(r *Runner)

// WithStore persists every analysis
func WithStore(s Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

// WithMetrics exports every analysis
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithErrorReporter sets where non fatal errors are reported
func WithErrorReporter(e ErrorReporter) RunnerOption {
	return func(r *Runner) {
		r.errors = e
	}
}

// WithCache shares a result cache between runners
func WithCache(c *Cache) RunnerOption {
	return func(r *Runner) {
		r.cache = c
	}
}

// NewRunner creates a runner for the configured characteristic.  Alert changes are published
// through tracker.
func NewRunner(cfg *Config, tracker *alert.Tracker, opts ...RunnerOption) (*Runner, error) {
	name := sample.ForStation(cfg.Characteristic, cfg.Product, cfg.Station)
	collector, err := sample.NewCollector(name, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("spc: %w", err)
	}
	r := &Runner{
		cfg:       cfg,
		name:      name,
		collector: collector,
		tracker:   tracker,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache(cfg.CacheSize)
	}
	if r.errors == nil {
		r.errors = errorService{suppress: true, logger: r.logger}
	}
	return r, nil
}

// Record adds a measurement to the window
func (r *Runner) Record(p sample.Point) {
	r.collector.Record(p)
}

// Len returns the number of measurements in the window
func (r *Runner) Len() int {
	return r.collector.Len()
}

// Analyze evaluates the current window.  Failing to persist the result is reported but does not
// fail the analysis.
func (r *Runner) Analyze(ctx context.Context) (Output, error) {
	snapshot := r.collector.Snapshot()
	subgroups := make([]string, len(snapshot.Points))
	for i, p := range snapshot.Points {
		subgroups[i] = p.Subgroup
	}

	out, cached, err := r.cache.Analyze(r.cfg.Input(snapshot.Values(), subgroups))
	if err != nil {
		return Output{}, err
	}
	r.metrics.ObserveAnalysis(r.name, out, cached)
	r.logger.Debug("analysis complete",
		slog.String("name", r.name.String()),
		slog.Int("n", out.Descriptive.N),
		slog.Any("cpk", out.Capability.Cpk),
		slog.String("alert", string(out.AlertType)),
		slog.Int("violations", len(out.Violations)),
		slog.Bool("cached", cached),
	)

	if r.store != nil {
		if err := r.persist(ctx, out); err != nil {
			r.errors.ReportError(err)
		}
	}

	if r.tracker != nil {
		n, changed, err := r.tracker.Observe(r.name, out.AlertType, out.Capability.Cpk)
		if err != nil {
			return out, err
		}
		if changed {
			r.logger.Info("alert changed", slog.String("name", r.name.String()), slog.String("from", string(n.Previous)), slog.String("to", string(n.AlertType)))
		}
	}
	return out, nil
}

func (r *Runner) persist(ctx context.Context, out Output) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("spc: encode result: %w", err)
	}
	return r.store.Save(ctx, NewRecord(r.name, out, payload))
}

// NewRecord converts an analysis to its persisted form
func NewRecord(name sample.Name, out Output, payload json.RawMessage) *store.Record {
	return &store.Record{
		Product:        name.Product(),
		Station:        name.Station(),
		Characteristic: name.Base(),
		N:              out.Descriptive.N,
		Mean:           out.Descriptive.Mean,
		StdDev:         out.Descriptive.StdDev,
		Cpk:            out.Capability.Cpk,
		Classification: out.Capability.Classification,
		AlertType:      out.AlertType,
		Violations:     len(out.Violations),
		Payload:        payload,
	}
}
