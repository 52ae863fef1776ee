package spc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-yaml/yaml"
	"github.com/spf13/pflag"
)

type options struct {
	options []ConfigOption
	err     error
}

// ParseCommandLine configures the analysis from command line options or from a YAML configuration
// file passed with the -c flag.  Returns the remaining arguments and a slice of functional options
// that can be applied with NewConfig.
func ParseCommandLine() ([]string, []ConfigOption, error) {
	pf := createFlagSet()
	return parse(os.Args[1:], pf)
}

func parse(args []string, pf *pflag.FlagSet) ([]string, []ConfigOption, error) {
	options := options{}
	if err := pf.ParseAll(args, parseFlag(&options)); err != nil {
		return pf.Args(), options.options, err
	}
	return pf.Args(), options.options, options.err
}

func createFlagSet() *pflag.FlagSet {
	pf := pflag.NewFlagSet("spc", pflag.ContinueOnError)
	pf.Usage = func() {
		fmt.Printf("Usage of spc:\nspc --usl <usl> --lsl <lsl> <options> [--values 1,2,3 | --file data.txt | < data.txt]\n")
		fmt.Printf("\n%s", pf.FlagUsagesWrapped(10))
	}

	pf.StringP("config", "c", "", "Use yaml configuration file")
	pf.StringP("product", "p", "", "Product code of the measured part")
	pf.StringP("station", "s", "", "Station or machine that produced the measurements")
	pf.String("characteristic", "cpk", "Name of the measured characteristic")
	pf.String("usl", "", "Upper specification limit")
	pf.String("lsl", "", "Lower specification limit")
	pf.String("target", "", "Target value used for the centering index Ca")
	pf.String("sigma-multiplier", "3", "Width of the control limits in standard deviations")
	pf.String("sigma-method", "overall", "Short term sigma estimate, overall or moving_range")
	pf.String("long-term-sigma", "", "Separately estimated long term sigma for Pp and Ppk.  Defaults to the short term sigma.")
	pf.Int("run-length", 7, "Consecutive points on one side of the center line that trigger a run violation")
	pf.Int("trend-length", 6, "Consecutive increasing or decreasing points that trigger a trend violation")
	pf.Bool("zones", false, "Also apply the 2 of 3 beyond 2 sigma and 4 of 5 beyond 1 sigma zone rules")
	pf.String("threshold-warning", "1.33", "Cpk below this value raises a warning")
	pf.String("threshold-critical", "1.00", "Cpk below this value raises a critical alert")
	pf.String("threshold-excellent", "1.67", "Cpk at or above this value is reported as excellent")
	pf.String("values", "", "Comma separated measurements")
	pf.StringP("file", "f", "", "Read measurements from a file, one per line as value[,subgroup].  Use - for stdin.")
	pf.Int("window", 0, "Number of most recent measurements analyzed.  Defaults to all measurements, or 125 with --follow.")
	pf.Bool("follow", false, "Keep reading measurements and re-analyze after each one")
	pf.String("format", "json", "Output format, json or text")
	pf.String("store-driver", "sqlite", "Database driver for persisted results, sqlite or postgres")
	pf.String("store-dsn", "", "Database connection string.  Results are not persisted without it.")
	pf.String("notify-host", "", "Send alert notifications to the gRPC alert service at host:port")
	pf.Bool("insecure", false, "Do not use TLS to secure the connection for notifications")
	pf.String("nats-url", "", "Publish alert notifications to this NATS server")
	pf.String("nats-subject", "spc.alerts", "NATS subject for alert notifications")
	pf.Duration("notify-timeout", 0, "Give up on delivering a notification after this long (e.g., 30s)")
	pf.Int("cache-size", DefaultCacheSize, "Number of analysis results kept in memory")
	pf.String("metrics-addr", "", "Serve prometheus metrics on this address (e.g., :9100)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.Bool("no-error-reports", false, "Do not send reports when there are unexpected errors")
	pf.String("rollbar-token", "", "Token for unexpected error reports")
	pf.String("environment", "production", "Environment reported with unexpected errors")

	return pf
}

func parseFlag(o *options) func(*pflag.Flag, string) error {
	return func(flag *pflag.Flag, value string) error {
		switch flag.Name {
		case "config":
			opts, err := parseFromFile(value)
			if err != nil {
				o.err = err
				return err
			}
			o.options = append(o.options, opts...)
		default:
			option, err := handleOption(flag.Name, value)
			if err != nil {
				o.err = err
				return err
			}
			o.options = append(o.options, option)
		}
		return nil
	}
}

func handleOption(name string, value string) (ConfigOption, error) {
	switch name {
	case "product":
		return Product(value), nil
	case "station":
		return Station(value), nil
	case "characteristic":
		return Characteristic(value), nil
	case "usl":
		return USL(value), nil
	case "lsl":
		return LSL(value), nil
	case "target":
		return Target(value), nil
	case "sigma-multiplier":
		return SigmaMultiplier(value), nil
	case "sigma-method":
		return SigmaMethod(value), nil
	case "long-term-sigma":
		return LongTermSigma(value), nil
	case "run-length":
		return RunLength(value), nil
	case "trend-length":
		return TrendLength(value), nil
	case "zones":
		return Zones(value), nil
	case "threshold-warning":
		return ThresholdWarning(value), nil
	case "threshold-critical":
		return ThresholdCritical(value), nil
	case "threshold-excellent":
		return ThresholdExcellent(value), nil
	case "values":
		return Values(value), nil
	case "file":
		return File(value), nil
	case "window":
		return Window(value), nil
	case "follow":
		return Follow(value), nil
	case "format":
		return Format(value), nil
	case "store-driver":
		return StoreDriver(value), nil
	case "store-dsn":
		return StoreDSN(value), nil
	case "notify-host":
		return NotifyHost(value), nil
	case "insecure":
		return Insecure(value), nil
	case "nats-url":
		return NATSURL(value), nil
	case "nats-subject":
		return NATSSubject(value), nil
	case "notify-timeout":
		return NotifyTimeout(value), nil
	case "cache-size":
		return CacheSize(value), nil
	case "metrics-addr":
		return MetricsAddr(value), nil
	case "log-level":
		return LogLevel(value), nil
	case "no-error-reports":
		return NoErrorReports(), nil
	case "rollbar-token":
		return RollbarToken(value), nil
	case "environment":
		return Environment(value), nil
	default:
		return nil, fmt.Errorf("Unknown option: %s", name)
	}
}

func parseFromFile(fpath string) ([]ConfigOption, error) {
	var options []ConfigOption
	data, err := os.ReadFile(fpath)
	if err != nil {
		return options, err
	}

	cfg := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return options, err
	}
	for k, v := range cfg {
		value, err := yamlValue(k, v)
		if err != nil {
			return options, err
		}
		if value == "false" && isSwitch(k) {
			continue
		}
		opt, err := handleOption(k, value)
		if err != nil {
			return options, err
		}
		options = append(options, opt)
	}
	return options, nil
}

// yamlValue converts a scalar or a list of scalars to the string form taken by the options.  Lists
// are only meaningful for values.
func yamlValue(key string, v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []interface{}:
		if key != "values" {
			return "", fmt.Errorf("Could not process config key %s, only values accepts a list", key)
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, err := yamlValue(key, item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("Could not process config key %s, unknown type", key)
	}
}

// isSwitch reports whether the option is a flag that takes no value
func isSwitch(name string) bool {
	switch name {
	case "no-error-reports", "zones", "follow", "insecure":
		return true
	default:
		return false
	}
}
