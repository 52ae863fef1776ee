package spc

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/stat"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	name := sample.ForStation("bore", "P-100", "S1")
	out := Output{
		AlertType:  stat.AlertWarning,
		Capability: stat.CapabilityResult{Cpk: stat.Index(1.2)},
		Violations: []stat.Violation{{Rule: stat.RuleRun}, {Rule: stat.RuleRun}, {Rule: stat.RuleTrend}},
	}
	m.ObserveAnalysis(name, out, false)
	m.ObserveAnalysis(name, out, true)
	m.ObserveNotification(nil)
	m.ObserveNotification(errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analyses.WithLabelValues("P-100", "S1", "warning")))
	assert.Equal(t, 1.2, testutil.ToFloat64(m.cpk.WithLabelValues("P-100", "S1", "bore")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.violations.WithLabelValues("P-100", "S1", "run")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("P-100", "S1", "trend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `spc_cpk{characteristic="bore",product="P-100",station="S1"} 1.2`)
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis(sample.NewName("x", nil), Output{}, false)
	m.ObserveNotification(nil)
}
