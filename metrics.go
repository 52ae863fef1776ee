package spc

import (
	"net/http"

	"github.com/BTBurke/spc/pkg/sample"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports analysis results to prometheus on a private registry
type Metrics struct {
	registry      *prometheus.Registry
	analyses      *prometheus.CounterVec
	cpk           *prometheus.GaugeVec
	violations    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cache         *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spc",
			Name:      "analyses_total",
			Help:      "Completed analyses by alert type.",
		}, []string{"product", "station", "alert"}),
		cpk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spc",
			Name:      "cpk",
			Help:      "Latest Cpk of a characteristic.",
		}, []string{"product", "station", "characteristic"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spc",
			Name:      "rule_violations_total",
			Help:      "Control chart rule violations by rule.",
		}, []string{"product", "station", "rule"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spc",
			Name:      "notifications_total",
			Help:      "Alert notifications by delivery result.",
		}, []string{"result"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spc",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.analyses, m.cpk, m.violations, m.notifications, m.cache)
	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records the result of an analysis
func (m *Metrics) ObserveAnalysis(name sample.Name, out Output, cached bool) {
	if m == nil {
		return
	}
	product, station := name.Product(), name.Station()
	m.analyses.WithLabelValues(product, station, string(out.AlertType)).Inc()
	m.cpk.WithLabelValues(product, station, name.Base()).Set(out.Capability.Cpk.Float())
	for _, v := range out.Violations {
		m.violations.WithLabelValues(product, station, string(v.Rule)).Inc()
	}
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	m.cache.WithLabelValues(outcome).Inc()
}

// ObserveNotification records a delivery attempt that finished with err
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}
