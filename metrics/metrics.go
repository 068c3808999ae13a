// Package metrics exposes node coordination state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sharedcode/grid"
)

var (
	ExchangeRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_exchange_rounds_total",
			Help: "Total number of partition exchange rounds",
		},
		[]string{"result"},
	)

	ExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grid_exchange_duration_seconds",
			Help:    "Time taken by partition exchange rounds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Collector reads the live state of a SharedContext on every scrape. The
// transaction metrics instance is looked up each time so a reset is
// observed.
type Collector struct {
	sc *grid.SharedContext

	commits   *prometheus.Desc
	rollbacks *prometheus.Desc
	caches    *prometheus.Desc
	topology  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for sc.
func NewCollector(sc *grid.SharedContext) *Collector {
	node := prometheus.Labels{"node": sc.NodeID().String()}
	return &Collector{
		sc:        sc,
		commits:   prometheus.NewDesc("grid_tx_commits_total", "Transactions committed on this node.", nil, node),
		rollbacks: prometheus.NewDesc("grid_tx_rollbacks_total", "Transactions rolled back on this node.", nil, node),
		caches:    prometheus.NewDesc("grid_caches", "Caches started on this node.", nil, node),
		topology:  prometheus.NewDesc("grid_ready_topology_major", "Major version of the last exchanged topology.", nil, node),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commits
	ch <- c.rollbacks
	ch <- c.caches
	ch <- c.topology
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.sc.TxMetrics().Snapshot()
	ch <- prometheus.MustNewConstMetric(c.commits, prometheus.CounterValue, float64(s.Commits))
	ch <- prometheus.MustNewConstMetric(c.rollbacks, prometheus.CounterValue, float64(s.Rollbacks))
	ch <- prometheus.MustNewConstMetric(c.caches, prometheus.GaugeValue, float64(len(c.sc.CacheContexts())))
	if ex := c.sc.Exchange(); ex != nil {
		ch <- prometheus.MustNewConstMetric(c.topology, prometheus.GaugeValue, float64(ex.ReadyTopologyVersion().Major))
	}
}
