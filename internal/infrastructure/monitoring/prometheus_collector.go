package monitoring

import (
	"time"

	"camlink/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports connection lifecycle metrics. It implements
// services.ConnectionMetrics.
type PrometheusCollector struct {
	attemptsTotal  *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	exhaustedTotal prometheus.Counter

	connectionState prometheus.Gauge
	activeProtocol  *prometheus.GaugeVec
	timeToConnect   *prometheus.HistogramVec
}

// NewPrometheusCollector registers the collector's metrics with reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camlink_connection_attempts_total",
			Help: "Connection attempts started, by protocol",
		}, []string{"protocol"}),

		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camlink_connection_failures_total",
			Help: "Connection attempts that failed, by protocol",
		}, []string{"protocol"}),

		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camlink_fallbacks_total",
			Help: "Fallback transitions between protocols",
		}, []string{"from", "to"}),

		exhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camlink_ladder_exhausted_total",
			Help: "Times every configured protocol failed for an attempt",
		}),

		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camlink_connection_state",
			Help: "Current connection state (0=idle 1=connecting 2=connected 3=disconnected 4=error)",
		}),

		activeProtocol: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camlink_active_protocol",
			Help: "Set to 1 for the protocol currently carrying media",
		}, []string{"protocol"}),

		timeToConnect: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camlink_time_to_connect_seconds",
			Help:    "Time from attempt start to established media, by protocol",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"protocol"}),
	}

	reg.MustRegister(
		c.attemptsTotal,
		c.failuresTotal,
		c.fallbacksTotal,
		c.exhaustedTotal,
		c.connectionState,
		c.activeProtocol,
		c.timeToConnect,
	)
	return c
}

func (c *PrometheusCollector) AttemptStarted(p domain.Protocol) {
	c.attemptsTotal.WithLabelValues(string(p)).Inc()
}

func (c *PrometheusCollector) Connected(p domain.Protocol, elapsed time.Duration) {
	c.timeToConnect.WithLabelValues(string(p)).Observe(elapsed.Seconds())
	c.setActiveProtocol(p)
}

func (c *PrometheusCollector) AttemptFailed(p domain.Protocol) {
	c.failuresTotal.WithLabelValues(string(p)).Inc()
}

func (c *PrometheusCollector) FallbackAdvanced(from, to domain.Protocol) {
	c.fallbacksTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (c *PrometheusCollector) Exhausted() {
	c.exhaustedTotal.Inc()
	c.setActiveProtocol("")
}

func (c *PrometheusCollector) StateChanged(s domain.ConnectionState) {
	c.connectionState.Set(float64(stateValue(s)))
	if s != domain.StateConnected {
		c.setActiveProtocol("")
	}
}

func (c *PrometheusCollector) setActiveProtocol(active domain.Protocol) {
	for _, p := range domain.DefaultProtocolOrder() {
		v := 0.0
		if p == active {
			v = 1.0
		}
		c.activeProtocol.WithLabelValues(string(p)).Set(v)
	}
}

func stateValue(s domain.ConnectionState) int {
	switch s {
	case domain.StateIdle:
		return 0
	case domain.StateConnecting:
		return 1
	case domain.StateConnected:
		return 2
	case domain.StateDisconnected:
		return 3
	case domain.StateError:
		return 4
	default:
		return -1
	}
}
