package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConfiguratorMetrics records what happens to product configuration flows.
type ConfiguratorMetrics struct {
	resolutions   *prometheus.CounterVec
	sessions      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	open          prometheus.Gauge
	optionalLines prometheus.Counter
	gridOpens     *prometheus.CounterVec
	discarded     prometheus.Counter
}

// NewConfiguratorMetrics registers the configurator collectors on the provided registerer.
func NewConfiguratorMetrics(reg prometheus.Registerer) *ConfiguratorMetrics {
	if reg == nil {
		return &ConfiguratorMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_resolutions_total",
		Help: "Template resolutions by route taken.",
	}, []string{"route"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_sessions_total",
		Help: "Finished configurator sessions by mode and outcome.",
	}, []string{"mode", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "configurator_session_duration_seconds",
		Help:    "Time a configurator dialog stayed open.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
	}, []string{"outcome"})
	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "configurator_open_sessions",
		Help: "Configurator dialogs currently open.",
	})
	optionalLines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "configurator_optional_lines_total",
		Help: "Order lines appended for optional products.",
	})
	gridOpens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "configurator_grid_opens_total",
		Help: "Grid configurator delegations by mode.",
	}, []string{"mode"})
	discarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "configurator_discarded_results_total",
		Help: "Confirmed selections dropped because the dialog was torn down first.",
	})
	reg.MustRegister(resolutions, sessions, duration, open, optionalLines, gridOpens, discarded)
	return &ConfiguratorMetrics{
		resolutions:   resolutions,
		sessions:      sessions,
		duration:      duration,
		open:          open,
		optionalLines: optionalLines,
		gridOpens:     gridOpens,
		discarded:     discarded,
	}
}

// IncResolution counts a template resolution routed to route.
func (c *ConfiguratorMetrics) IncResolution(route string) {
	if c == nil || c.resolutions == nil {
		return
	}
	c.resolutions.WithLabelValues(normalizeLabel(route)).Inc()
}

// SessionOpened tracks a dialog that just opened.
func (c *ConfiguratorMetrics) SessionOpened() {
	if c == nil || c.open == nil {
		return
	}
	c.open.Inc()
}

// SessionFinished records the outcome and lifetime of a dialog.
func (c *ConfiguratorMetrics) SessionFinished(mode, outcome string, lifetime time.Duration) {
	if c == nil || c.sessions == nil {
		return
	}
	c.open.Dec()
	c.sessions.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(lifetime.Seconds())
}

// AddOptionalLines counts lines appended for optional products.
func (c *ConfiguratorMetrics) AddOptionalLines(n int) {
	if c == nil || c.optionalLines == nil || n <= 0 {
		return
	}
	c.optionalLines.Add(float64(n))
}

// IncGridOpen counts a delegation to the grid surface.
func (c *ConfiguratorMetrics) IncGridOpen(mode string) {
	if c == nil || c.gridOpens == nil {
		return
	}
	c.gridOpens.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncDiscarded counts a selection that arrived after teardown.
func (c *ConfiguratorMetrics) IncDiscarded() {
	if c == nil || c.discarded == nil {
		return
	}
	c.discarded.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
