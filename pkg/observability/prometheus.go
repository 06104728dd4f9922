package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tanglescope"

// Prometheus implements [VisualizerHooks] and [FeedHooks] on top of
// Prometheus collectors.
type Prometheus struct {
	ingestBatches  *prometheus.CounterVec
	ingestNodes    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	metadata       *prometheus.CounterVec
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	graphNodes     *prometheus.GaugeVec
	graphEdges     *prometheus.GaugeVec
	renderErrors   *prometheus.CounterVec

	feedConnects     *prometheus.CounterVec
	feedDisconnects  *prometheus.CounterVec
	feedMessages     *prometheus.CounterVec
	feedBytes        *prometheus.CounterVec
	feedDecodeErrors *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
// Registering twice on the same registerer panics, as with promauto.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		ingestBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Feed batches committed, by priming flag",
		}, []string{"instance", "priming"}),
		ingestNodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "nodes_total",
			Help:      "Nodes processed by outcome (added, filled, evicted, dropped, duplicate)",
		}, []string{"instance", "outcome"}),
		ingestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time to apply a batch and push its render deltas",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"instance"}),
		metadata: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "updates_total",
			Help:      "Metadata updates by outcome (applied, unknown)",
		}, []string{"instance", "outcome"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "evaluations_total",
			Help:      "Search evaluations by validity",
		}, []string{"instance", "valid"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Time to evaluate a search over the whole graph",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		graphNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes currently held",
		}, []string{"instance"}),
		graphEdges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Edges currently held",
		}, []string{"instance"}),
		renderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "errors_total",
			Help:      "Render cycles whose commit failed",
		}, []string{"instance"}),

		feedConnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connects_total",
			Help:      "Successful feed connections",
		}, []string{"source"}),
		feedDisconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "disconnects_total",
			Help:      "Feed disconnections by cause (clean, error)",
		}, []string{"source", "cause"}),
		feedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Decoded feed messages by kind",
		}, []string{"source", "kind"}),
		feedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bytes_total",
			Help:      "Feed message bytes received",
		}, []string{"source"}),
		feedDecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Feed messages that could not be decoded",
		}, []string{"source"}),
	}
}

func (p *Prometheus) OnIngest(instance string, s IngestStats, d time.Duration) {
	priming := "false"
	if s.Priming {
		priming = "true"
	}
	p.ingestBatches.WithLabelValues(instance, priming).Inc()
	p.ingestNodes.WithLabelValues(instance, "added").Add(float64(s.Added))
	p.ingestNodes.WithLabelValues(instance, "filled").Add(float64(s.Filled))
	p.ingestNodes.WithLabelValues(instance, "evicted").Add(float64(s.Evicted))
	p.ingestNodes.WithLabelValues(instance, "dropped").Add(float64(s.Dropped))
	p.ingestNodes.WithLabelValues(instance, "duplicate").Add(float64(s.Duplicates))
	p.ingestDuration.WithLabelValues(instance).Observe(d.Seconds())
}

func (p *Prometheus) OnMetadata(instance string, updates, touched int) {
	p.metadata.WithLabelValues(instance, "applied").Add(float64(touched))
	p.metadata.WithLabelValues(instance, "unknown").Add(float64(updates - touched))
}

func (p *Prometheus) OnSearch(instance string, _ int, invalid bool, d time.Duration) {
	valid := "true"
	if invalid {
		valid = "false"
	}
	p.searches.WithLabelValues(instance, valid).Inc()
	p.searchDuration.Observe(d.Seconds())
}

func (p *Prometheus) OnGraphSize(instance string, nodes, edges int) {
	p.graphNodes.WithLabelValues(instance).Set(float64(nodes))
	p.graphEdges.WithLabelValues(instance).Set(float64(edges))
}

func (p *Prometheus) OnRenderError(instance string, _ error) {
	p.renderErrors.WithLabelValues(instance).Inc()
}

func (p *Prometheus) OnConnect(source string) {
	p.feedConnects.WithLabelValues(source).Inc()
}

func (p *Prometheus) OnDisconnect(source string, err error) {
	cause := "clean"
	if err != nil {
		cause = "error"
	}
	p.feedDisconnects.WithLabelValues(source, cause).Inc()
}

func (p *Prometheus) OnMessage(source, kind string, size int) {
	p.feedMessages.WithLabelValues(source, kind).Inc()
	p.feedBytes.WithLabelValues(source).Add(float64(size))
}

func (p *Prometheus) OnDecodeError(source string, _ error) {
	p.feedDecodeErrors.WithLabelValues(source).Inc()
}
