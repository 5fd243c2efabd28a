package forksearch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors updated by every run that uses them.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	nodesVisited   prometheus.Counter
	tasksCreated   prometheus.Counter
	claimsRejected prometheus.Counter
	liveTasks      prometheus.Gauge
	searches       *prometheus.CounterVec
	duration       prometheus.Histogram
}

// NewMetrics creates the search collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		nodesVisited: factory.NewCounter(prometheus.CounterOpts{
			Name: "forksearch_nodes_visited_total",
			Help: "Nodes explored past the claim check",
		}),
		tasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "forksearch_tasks_created_total",
			Help: "Branch goroutines started, including each run's root task",
		}),
		claimsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "forksearch_claims_rejected_total",
			Help: "Neighbor claims lost because another branch owned the node",
		}),
		liveTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forksearch_live_tasks",
			Help: "Branch goroutines currently running",
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forksearch_searches_total",
			Help: "Completed searches by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forksearch_search_duration_seconds",
			Help:    "Wall time of a search run",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}),
	}
}

func (m *Metrics) visited() {
	if m != nil {
		m.nodesVisited.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.claimsRejected.Inc()
	}
}

func (m *Metrics) taskStarted() {
	if m != nil {
		m.tasksCreated.Inc()
		m.liveTasks.Inc()
	}
}

func (m *Metrics) taskDone() {
	if m != nil {
		m.liveTasks.Dec()
	}
}

func (m *Metrics) searchDone(outcome Outcome, elapsed time.Duration) {
	if m != nil {
		m.searches.WithLabelValues(string(outcome)).Inc()
		m.duration.Observe(elapsed.Seconds())
	}
}
