package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ConnectedPeers prometheus.Gauge
	ActiveLinks    prometheus.Gauge
	LinksOpened    prometheus.Counter
	Frames         *prometheus.CounterVec
	Rejected       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the relay collectors on a dedicated registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Number of peers holding a relay WebSocket",
		}),
		ActiveLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_links",
			Help:      "Number of open peer-to-peer links",
		}),
		LinksOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_opened_total",
			Help:      "Total number of links opened",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames received from peers by type",
		}, []string{"type"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Requests or frames refused by reason",
		}, []string{"reason"}),
		gatherer: reg,
	}
	reg.MustRegister(m.ConnectedPeers, m.ActiveLinks, m.LinksOpened, m.Frames, m.Rejected)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) peerUp() {
	if m != nil {
		m.ConnectedPeers.Inc()
	}
}

func (m *Metrics) peerDown() {
	if m != nil {
		m.ConnectedPeers.Dec()
	}
}

func (m *Metrics) linkUp() {
	if m != nil {
		m.LinksOpened.Inc()
		m.ActiveLinks.Inc()
	}
}

func (m *Metrics) linkDown() {
	if m != nil {
		m.ActiveLinks.Dec()
	}
}

func (m *Metrics) frame(t FrameType) {
	if m != nil {
		m.Frames.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) reject(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}
