package spc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-yaml/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tt := []struct {
		Name     string
		Cmdline  string
		Expected []ConfigOption
		Error    bool
	}{
		{Name: "product", Cmdline: "--product P-100", Expected: []ConfigOption{Product("P-100")}, Error: false},
		{Name: "station short", Cmdline: "-s S1", Expected: []ConfigOption{Station("S1")}, Error: false},
		{Name: "limits", Cmdline: "--usl 10.5 --lsl 9.5 --target 10", Expected: []ConfigOption{USL("10.5"), LSL("9.5"), Target("10")}, Error: false},
		{Name: "sigma-multiplier", Cmdline: "--sigma-multiplier 2.5", Expected: []ConfigOption{SigmaMultiplier("2.5")}, Error: false},
		{Name: "sigma-method", Cmdline: "--sigma-method moving_range", Expected: []ConfigOption{SigmaMethod("moving_range")}, Error: false},
		{Name: "long-term-sigma", Cmdline: "--long-term-sigma 0.2", Expected: []ConfigOption{LongTermSigma("0.2")}, Error: false},
		{Name: "rules", Cmdline: "--run-length 8 --trend-length 7 --zones", Expected: []ConfigOption{RunLength("8"), TrendLength("7"), Zones("")}, Error: false},
		{Name: "thresholds", Cmdline: "--threshold-warning 1.5 --threshold-critical 1.1 --threshold-excellent 2", Expected: []ConfigOption{ThresholdWarning("1.5"), ThresholdCritical("1.1"), ThresholdExcellent("2")}, Error: false},
		{Name: "values", Cmdline: "--values 1,2,3", Expected: []ConfigOption{Values("1,2,3")}, Error: false},
		{Name: "values multiple", Cmdline: "--values 1,2 --values 3", Expected: []ConfigOption{Values("1,2,3")}, Error: false},
		{Name: "file", Cmdline: "-f data.txt --window 50 --follow", Expected: []ConfigOption{File("data.txt"), Window("50"), Follow("")}, Error: false},
		{Name: "format", Cmdline: "--format text", Expected: []ConfigOption{Format("text")}, Error: false},
		{Name: "store", Cmdline: "--store-driver postgres --store-dsn postgres://localhost/spc", Expected: []ConfigOption{StoreDriver("postgres"), StoreDSN("postgres://localhost/spc")}, Error: false},
		{Name: "notify-host", Cmdline: "--notify-host localhost:8080 --insecure", Expected: []ConfigOption{NotifyHost("localhost:8080"), Insecure("")}, Error: false},
		{Name: "nats", Cmdline: "--nats-url nats://localhost:4222 --nats-subject plant.alerts", Expected: []ConfigOption{NATSURL("nats://localhost:4222"), NATSSubject("plant.alerts")}, Error: false},
		{Name: "notify-timeout", Cmdline: "--notify-timeout 30s", Expected: []ConfigOption{NotifyTimeout("30s")}, Error: false},
		{Name: "cache-size", Cmdline: "--cache-size 10", Expected: []ConfigOption{CacheSize("10")}, Error: false},
		{Name: "metrics-addr", Cmdline: "--metrics-addr :9100", Expected: []ConfigOption{MetricsAddr(":9100")}, Error: false},
		{Name: "log-level", Cmdline: "--log-level debug", Expected: []ConfigOption{LogLevel("debug")}, Error: false},
		{Name: "error reports", Cmdline: "--no-error-reports --rollbar-token abc --environment development", Expected: []ConfigOption{NoErrorReports(), RollbarToken("abc"), Environment("development")}, Error: false},
		{Name: "error on unknown flag", Cmdline: "--does-not-exist", Expected: []ConfigOption{}, Error: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			pf := createFlagSet()
			_, options, err := parse(strings.Split(tc.Cmdline, " "), pf)
			if tc.Error {
				assert.Error(t, err)
			} else {
				expected, received := createComparisonConfigs(tc.Expected, options)
				assert.Equal(t, expected, received)
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	tt := []struct {
		Name     string
		Yaml     map[string]interface{}
		Expected []ConfigOption
		Error    bool
	}{
		{Name: "product", Yaml: map[string]interface{}{"product": "P-100"}, Expected: []ConfigOption{Product("P-100")}, Error: false},
		{Name: "limits", Yaml: map[string]interface{}{"usl": 10.5, "lsl": 9.5}, Expected: []ConfigOption{USL("10.5"), LSL("9.5")}, Error: false},
		{Name: "integer limit", Yaml: map[string]interface{}{"usl": 11}, Expected: []ConfigOption{USL("11")}, Error: false},
		{Name: "run-length", Yaml: map[string]interface{}{"run-length": 9}, Expected: []ConfigOption{RunLength("9")}, Error: false},
		{Name: "zones", Yaml: map[string]interface{}{"zones": true}, Expected: []ConfigOption{Zones("")}, Error: false},
		{Name: "zones off", Yaml: map[string]interface{}{"zones": false}, Expected: []ConfigOption{}, Error: false},
		{Name: "values list", Yaml: map[string]interface{}{"values": []float64{10.1, 10.2, 9.9}}, Expected: []ConfigOption{Values("10.1,10.2,9.9")}, Error: false},
		{Name: "values string", Yaml: map[string]interface{}{"values": "10.1, 10.2"}, Expected: []ConfigOption{Values("10.1,10.2")}, Error: false},
		{Name: "notify-timeout", Yaml: map[string]interface{}{"notify-timeout": "10m"}, Expected: []ConfigOption{NotifyTimeout("10m")}, Error: false},
		{Name: "no-error-reports", Yaml: map[string]interface{}{"no-error-reports": true}, Expected: []ConfigOption{NoErrorReports()}, Error: false},
		{Name: "error on unknown key", Yaml: map[string]interface{}{"does-not-exist": "test"}, Expected: []ConfigOption{}, Error: true},
		{Name: "error on list", Yaml: map[string]interface{}{"usl": []int{1, 2}}, Expected: []ConfigOption{}, Error: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spc.yml")
			y, err := yaml.Marshal(tc.Yaml)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, y, 0644))

			pf := createFlagSet()
			_, options, err := parse([]string{"-c", path}, pf)
			if tc.Error {
				assert.Error(t, err)
			} else {
				expected, received := createComparisonConfigs(tc.Expected, options)
				assert.Equal(t, expected, received)
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseYAMLMissingFile(t *testing.T) {
	_, _, err := parse([]string{"-c", filepath.Join(t.TempDir(), "missing.yml")}, createFlagSet())
	assert.Error(t, err)
}

func TestParseRemainingArgs(t *testing.T) {
	args, _, err := parse([]string{"--usl", "1", "--", "extra"}, createFlagSet())
	require.NoError(t, err)
	assert.Equal(t, []string{"extra"}, args)
}

func createComparisonConfigs(expected []ConfigOption, received []ConfigOption) (Config, Config) {
	expectedConfig := Config{}
	for _, eo := range expected {
		eo(&expectedConfig)
	}
	receivedConfig := Config{}
	for _, to := range received {
		to(&receivedConfig)
	}
	return expectedConfig, receivedConfig
}
