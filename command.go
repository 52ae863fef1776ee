package spc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BTBurke/spc/pkg/alert"
	"github.com/BTBurke/spc/pkg/eventbus"
	"github.com/BTBurke/spc/pkg/notify"
	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/store"
)

// DefaultWindow is the number of measurements analyzed when following a stream
const DefaultWindow = 125

// Command is one analysis session: it reads measurements, analyzes them and delivers the results
// to the configured store, metrics and notification transport
type Command struct {
	Config *Config

	logger   *slog.Logger
	errors   ErrorReporter
	bus      *eventbus.EventBus
	tracker  *alert.Tracker
	reporter *Reporter
	metrics  *Metrics
	store    *store.SQL
	server   *http.Server
	cleanup  []func() error
}

// New validates the configuration and connects the services around the analysis
func New(ctx context.Context, options ...ConfigOption) (*Command, []error) {
	cfg, errs := NewConfig(options...)
	if len(errs) > 0 {
		return nil, errs
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	c := &Command{
		Config:  cfg,
		logger:  logger,
		errors:  NewErrorReporter(cfg, logger),
		bus:     eventbus.New(),
		metrics: NewMetrics(),
	}
	c.tracker = alert.NewTracker(c.bus)

	sender, err := c.sender()
	if err != nil {
		return nil, []error{err}
	}
	c.reporter = NewReporter(sender, cfg.NotifyTimeout,
		WithReporterLogger(logger),
		WithReporterErrors(c.errors),
		WithReporterMetrics(c.metrics),
	)
	c.reporter.Start(c.bus)

	if cfg.StoreDSN != "" {
		db, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			if werr := c.Wait(ctx); werr != nil {
				logger.Debug("shutdown after failed start", slog.Any("error", werr))
			}
			return nil, []error{err}
		}
		c.store = db
		c.cleanup = append(c.cleanup, db.Close)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", c.metrics.Handler())
		c.server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.errors.ReportError(fmt.Errorf("metrics server: %w", err))
			}
		}()
	}
	return c, nil
}

func (c *Command) sender() (notify.Sender, error) {
	switch {
	case c.Config.NotifyHost != "":
		s, err := notify.NewGRPCSender(c.Config.NotifyHost, notify.DialOptions(c.Config.Insecure)...)
		if err != nil {
			return nil, err
		}
		c.cleanup = append(c.cleanup, s.Close)
		return s, nil
	case c.Config.NATSURL != "":
		s, err := notify.ConnectNATS(c.Config.NATSURL, c.Config.NATSSubject)
		if err != nil {
			return nil, err
		}
		c.cleanup = append(c.cleanup, s.Close)
		return s, nil
	default:
		return notify.LogSender{Logger: c.logger}, nil
	}
}

// Exec analyzes the configured measurements and writes the result to out.  Measurements come from
// the values option, the file option or, when neither is set, from in.  With follow set every new
// measurement triggers an analysis of the most recent window.
func (c *Command) Exec(ctx context.Context, in io.Reader, out io.Writer) (Output, error) {
	points, src, closeSrc, err := c.source(in)
	if err != nil {
		return Output{}, err
	}
	defer closeSrc()

	window := c.Config.Window
	if window == 0 {
		window = DefaultWindow
	}
	if !c.Config.Follow {
		all, err := readPoints(src)
		if err != nil {
			return Output{}, err
		}
		points = append(points, all...)
		if c.Config.Window == 0 {
			window = max(len(points), 1)
		}
	}

	runner, err := c.runner(window)
	if err != nil {
		return Output{}, err
	}
	for _, p := range points {
		runner.Record(p)
	}
	if !c.Config.Follow {
		result, err := runner.Analyze(ctx)
		if err != nil {
			return Output{}, err
		}
		return result, WriteOutput(out, result, c.Config.Format)
	}
	return c.follow(ctx, runner, src, out)
}

func (c *Command) runner(window int) (*Runner, error) {
	opts := []RunnerOption{
		WithLogger(c.logger),
		WithErrorReporter(c.errors),
		WithMetrics(c.metrics),
	}
	if c.store != nil {
		opts = append(opts, WithStore(c.store))
	}
	cfg := *c.Config
	cfg.Window = window
	return NewRunner(&cfg, c.tracker, opts...)
}

// follow analyzes after every measurement read from src until it is exhausted or ctx is done.
// Returns the last successful analysis.
func (c *Command) follow(ctx context.Context, runner *Runner, src io.Reader, out io.Writer) (Output, error) {
	var last Output
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		points, err := parseLine(scanner.Text())
		if err != nil {
			c.logger.Warn("skipping measurement", slog.Any("error", err))
			continue
		}
		for _, p := range points {
			runner.Record(p)
		}
		if len(points) == 0 || runner.Len() < 2 {
			continue
		}
		result, err := runner.Analyze(ctx)
		if err != nil {
			c.logger.Warn("analysis failed", slog.Any("error", err))
			continue
		}
		last = result
		if err := WriteOutput(out, result, c.Config.Format); err != nil {
			return last, err
		}
	}
	return last, scanner.Err()
}

// source returns points given on the command line and the reader for any further measurements
func (c *Command) source(in io.Reader) ([]sample.Point, io.Reader, func(), error) {
	noop := func() {}
	points := sample.FromValues(sample.NewName(c.Config.Characteristic, nil), c.Config.Values).Points
	switch {
	case c.Config.File != "" && c.Config.File != "-":
		f, err := os.Open(c.Config.File)
		if err != nil {
			return nil, nil, noop, err
		}
		return points, f, func() { f.Close() }, nil
	case c.Config.File == "-" || len(points) == 0:
		return points, in, noop, nil
	default:
		return points, strings.NewReader(""), noop, nil
	}
}

func readPoints(r io.Reader) ([]sample.Point, error) {
	var out []sample.Point
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		points, err := parseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, points...)
	}
	return out, scanner.Err()
}

// parseLine reads either value,subgroup or a list of values separated by commas or whitespace.
// Blank lines and lines starting with # are ignored.
func parseLine(line string) ([]sample.Point, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	if fields := strings.Split(line, ","); len(fields) == 2 {
		id := strings.TrimSpace(fields[1])
		if _, err := parseFloat("value", id); err != nil && id != "" {
			v, err := parseFloat("value", fields[0])
			if err != nil {
				return nil, err
			}
			return []sample.Point{{Value: v, Subgroup: id}}, nil
		}
	}
	values, err := ParseValues(line)
	if err != nil {
		return nil, err
	}
	points := make([]sample.Point, len(values))
	for i, v := range values {
		points[i] = sample.Point{Value: v}
	}
	return points, nil
}

// Wait blocks until every notification has been delivered or has timed out, then releases the
// connections held by the command
func (c *Command) Wait(ctx context.Context) error {
	err := c.bus.Shutdown(ctx)
	if err == nil {
		err = c.reporter.Wait()
	}
	c.Close(ctx)
	FlushErrors()
	return err
}

// Close releases connections without waiting for pending notifications
func (c *Command) Close(ctx context.Context) {
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			c.logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}
	for _, f := range c.cleanup {
		if err := f(); err != nil {
			c.logger.Debug("cleanup failed", slog.Any("error", err))
		}
	}
	c.cleanup = nil
}
