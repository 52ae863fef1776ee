package spc

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BTBurke/spc/pkg/notify"
	"github.com/BTBurke/spc/pkg/stat"
	"github.com/BTBurke/spc/pkg/store"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds the analysis parameters for one characteristic and the settings of the services
// around it
type Config struct {
	Product         string
	Station         string
	Characteristic  string
	Limits          stat.SpecLimits
	SigmaMultiplier float64
	SigmaMethod     stat.SigmaMethod
	LongTermSigma   *float64
	Rules           stat.RuleConfig
	Thresholds      stat.Thresholds

	Values []float64
	File   string
	Window int
	Follow bool
	Format string

	StoreDriver   string
	StoreDSN      string
	NotifyHost    string
	Insecure      bool
	NATSURL       string
	NATSSubject   string
	NotifyTimeout time.Duration
	CacheSize     int
	MetricsAddr   string

	LogLevel       slog.Level
	NoErrorReports bool
	RollbarToken   string
	Environment    string
}

// ConfigOption is a functional option that modifies the configuration.  Options take string
// values as they arrive from flags or the YAML configuration file.
type ConfigOption func(c *Config) error

// NewConfig applies the options over the defaults and validates the result.  All option errors
// are collected so that every problem is reported at once.
func NewConfig(options ...ConfigOption) (*Config, []error) {
	c := &Config{
		Characteristic:  "cpk",
		SigmaMultiplier: stat.DefaultSigmaMultiplier,
		SigmaMethod:     stat.SigmaOverall,
		Thresholds:      stat.DefaultThresholds(),
		Format:          FormatJSON,
		StoreDriver:     store.SQLite,
		NATSSubject:     notify.DefaultSubject,
		NotifyTimeout:   time.Minute,
		CacheSize:       DefaultCacheSize,
		LogLevel:        slog.LevelInfo,
		Environment:     "production",
	}

	var errors []error
	for _, option := range options {
		if err := option(c); err != nil {
			errors = append(errors, err)
		}
	}

	if _, err := c.Limits.Validate(); err != nil {
		errors = append(errors, err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		errors = append(errors, err)
	}
	if _, err := stat.NewDetector(c.Rules); err != nil {
		errors = append(errors, err)
	}
	if c.NotifyHost != "" && c.NATSURL != "" {
		errors = append(errors, fmt.Errorf("choose one of notify-host or nats-url"))
	}

	if len(errors) > 0 {
		return nil, errors
	}
	return c, nil
}

// Input builds an analysis request for values using the configured parameters
func (c *Config) Input(values []float64, subgroups []string) Input {
	k := c.SigmaMultiplier
	rules := c.Rules
	thresholds := c.Thresholds
	in := Input{
		Values:          values,
		USL:             c.Limits.USL,
		LSL:             c.Limits.LSL,
		Target:          c.Limits.Target,
		SigmaMultiplier: &k,
		SigmaMethod:     c.SigmaMethod,
		LongTermSigma:   c.LongTermSigma,
		RuleConfig:      &rules,
		Thresholds:      &thresholds,
		Product:         c.Product,
		Station:         c.Station,
		Characteristic:  c.Characteristic,
	}
	for _, s := range subgroups {
		if s != "" {
			in.Subgroups = subgroups
			break
		}
	}
	return in
}

func parseFloat(name string, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("could not convert %s to a number: %s", name, value)
	}
	return f, nil
}

func parseInt(name string, value string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("could not convert %s to integer: %s", name, value)
	}
	return i, nil
}

// parseBool treats an empty value as true so that bare flags and YAML keys enable the option
func parseBool(name string, value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("could not convert %s to true or false: %s", name, value)
	}
	return b, nil
}

// ParseValues parses a comma or whitespace separated list of measurements
func ParseValues(value string) ([]float64, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := parseFloat("value", f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func Product(product string) ConfigOption {
	return func(c *Config) error {
		c.Product = product
		return nil
	}
}

func Station(station string) ConfigOption {
	return func(c *Config) error {
		c.Station = station
		return nil
	}
}

func Characteristic(name string) ConfigOption {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("characteristic name must not be empty")
		}
		c.Characteristic = name
		return nil
	}
}

func USL(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("usl", value)
		if err != nil {
			return err
		}
		c.Limits.USL = &f
		return nil
	}
}

func LSL(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("lsl", value)
		if err != nil {
			return err
		}
		c.Limits.LSL = &f
		return nil
	}
}

func Target(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("target", value)
		if err != nil {
			return err
		}
		c.Limits.Target = &f
		return nil
	}
}

func SigmaMultiplier(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("sigma-multiplier", value)
		if err != nil {
			return err
		}
		if f <= 0 {
			return fmt.Errorf("sigma-multiplier must be positive, got %s", value)
		}
		c.SigmaMultiplier = f
		return nil
	}
}

func SigmaMethod(value string) ConfigOption {
	return func(c *Config) error {
		m, err := stat.ParseSigmaMethod(value)
		if err != nil {
			return err
		}
		c.SigmaMethod = m
		return nil
	}
}

func LongTermSigma(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("long-term-sigma", value)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("long-term-sigma must not be negative, got %s", value)
		}
		c.LongTermSigma = &f
		return nil
	}
}

func RunLength(value string) ConfigOption {
	return func(c *Config) error {
		i, err := parseInt("run-length", value)
		if err != nil {
			return err
		}
		c.Rules.RunLength = i
		return nil
	}
}

func TrendLength(value string) ConfigOption {
	return func(c *Config) error {
		i, err := parseInt("trend-length", value)
		if err != nil {
			return err
		}
		c.Rules.TrendLength = i
		return nil
	}
}

func Zones(value string) ConfigOption {
	return func(c *Config) error {
		b, err := parseBool("zones", value)
		if err != nil {
			return err
		}
		c.Rules.Zones = b
		return nil
	}
}

func ThresholdWarning(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("threshold-warning", value)
		c.Thresholds.Warning = f
		return err
	}
}

func ThresholdCritical(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("threshold-critical", value)
		c.Thresholds.Critical = f
		return err
	}
}

func ThresholdExcellent(value string) ConfigOption {
	return func(c *Config) error {
		f, err := parseFloat("threshold-excellent", value)
		c.Thresholds.Excellent = f
		return err
	}
}

func Values(value string) ConfigOption {
	return func(c *Config) error {
		v, err := ParseValues(value)
		if err != nil {
			return err
		}
		c.Values = append(c.Values, v...)
		return nil
	}
}

func File(path string) ConfigOption {
	return func(c *Config) error {
		c.File = path
		return nil
	}
}

func Window(value string) ConfigOption {
	return func(c *Config) error {
		i, err := parseInt("window", value)
		if err != nil {
			return err
		}
		if i < 2 {
			return fmt.Errorf("window must hold at least 2 values, got %d", i)
		}
		c.Window = i
		return nil
	}
}

func Follow(value string) ConfigOption {
	return func(c *Config) error {
		b, err := parseBool("follow", value)
		c.Follow = b
		return err
	}
}

func Format(format string) ConfigOption {
	return func(c *Config) error {
		switch format {
		case FormatJSON, FormatText:
			c.Format = format
			return nil
		default:
			return fmt.Errorf("unknown format %s, use json or text", format)
		}
	}
}

func StoreDriver(driver string) ConfigOption {
	return func(c *Config) error {
		switch driver {
		case store.SQLite, store.Postgres:
			c.StoreDriver = driver
			return nil
		default:
			return fmt.Errorf("unknown store driver %s, use %s or %s", driver, store.SQLite, store.Postgres)
		}
	}
}

func StoreDSN(dsn string) ConfigOption {
	return func(c *Config) error {
		c.StoreDSN = dsn
		return nil
	}
}

func NotifyHost(host string) ConfigOption {
	return func(c *Config) error {
		c.NotifyHost = host
		return nil
	}
}

func Insecure(value string) ConfigOption {
	return func(c *Config) error {
		b, err := parseBool("insecure", value)
		c.Insecure = b
		return err
	}
}

func NATSURL(url string) ConfigOption {
	return func(c *Config) error {
		c.NATSURL = url
		return nil
	}
}

func NATSSubject(subject string) ConfigOption {
	return func(c *Config) error {
		if subject == "" {
			return fmt.Errorf("nats-subject must not be empty")
		}
		c.NATSSubject = subject
		return nil
	}
}

func NotifyTimeout(timeout string) ConfigOption {
	return func(c *Config) error {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("unrecognized notify timeout duration: %s", timeout)
		}
		c.NotifyTimeout = duration
		return nil
	}
}

func CacheSize(value string) ConfigOption {
	return func(c *Config) error {
		i, err := parseInt("cache-size", value)
		if err != nil {
			return err
		}
		c.CacheSize = i
		return nil
	}
}

func MetricsAddr(addr string) ConfigOption {
	return func(c *Config) error {
		c.MetricsAddr = addr
		return nil
	}
}

func LogLevel(level string) ConfigOption {
	return func(c *Config) error {
		var l slog.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("unknown log level %s", level)
		}
		c.LogLevel = l
		return nil
	}
}

func NoErrorReports() ConfigOption {
	return func(c *Config) error {
		c.NoErrorReports = true
		return nil
	}
}

func RollbarToken(token string) ConfigOption {
	return func(c *Config) error {
		c.RollbarToken = token
		return nil
	}
}

func Environment(env string) ConfigOption {
	return func(c *Config) error {
		c.Environment = env
		return nil
	}
}
