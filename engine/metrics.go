package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the monitor's own operational counters and the headline
// per-device gauges. A nil *Metrics is valid and records nothing, so tests
// and replay runs can skip registration.
type Metrics struct {
	registry *prometheus.Registry

	healthScore  *prometheus.GaugeVec
	temperature  *prometheus.GaugeVec
	activeAlerts *prometheus.GaugeVec

	pollErrors     *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		healthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "diskmon",
			Name:      "health_score",
			Help:      "Composite device health score, 0 (failed) to 100 (pristine).",
		}, []string{"device"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "diskmon",
			Name:      "temperature_celsius",
			Help:      "Device temperature from the latest SMART poll.",
		}, []string{"device"}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "diskmon",
			Name:      "active_alerts",
			Help:      "Currently active alerts by severity.",
		}, []string{"severity"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diskmon",
			Name:      "poll_errors_total",
			Help:      "Provider poll failures by domain.",
		}, []string{"domain"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diskmon",
			Name:      "notification_failures_total",
			Help:      "Alert notification delivery failures by channel.",
		}, []string{"channel"}),
	}
	m.registry.MustRegister(
		m.healthScore, m.temperature, m.activeAlerts,
		m.pollErrors, m.notifyFailures,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetHealthScore records a device's latest score.
func (m *Metrics) SetHealthScore(device string, score int) {
	if m == nil {
		return
	}
	m.healthScore.WithLabelValues(device).Set(float64(score))
}

// SetTemperature records a device's latest SMART temperature.
func (m *Metrics) SetTemperature(device string, celsius int) {
	if m == nil {
		return
	}
	m.temperature.WithLabelValues(device).Set(float64(celsius))
}

// RemoveDevice drops the per-device series after hotplug removal.
func (m *Metrics) RemoveDevice(device string) {
	if m == nil {
		return
	}
	m.healthScore.DeleteLabelValues(device)
	m.temperature.DeleteLabelValues(device)
}

// SetActiveAlerts records the current active alert counts per severity.
func (m *Metrics) SetActiveAlerts(warn, crit int) {
	if m == nil {
		return
	}
	m.activeAlerts.WithLabelValues("warn").Set(float64(warn))
	m.activeAlerts.WithLabelValues("crit").Set(float64(crit))
}

// PollError counts one provider failure for a poll domain.
func (m *Metrics) PollError(domain string) {
	if m == nil {
		return
	}
	m.pollErrors.WithLabelValues(domain).Inc()
}

// NotifyFailure counts one notification delivery failure.
func (m *Metrics) NotifyFailure(channel string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(channel).Inc()
}
