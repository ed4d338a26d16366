// Package metrics is the out-of-core observability collaborator: counters
// for action throughput and fills and a histogram of per-action dispatch
// and commit latency, exported over
// /metrics. No execution-core package depends on it; pkg/api records into
// it the way a caller records into an audit log, never the other way
// around.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
)

// Collector owns a private registry rather than the global default one, so
// a process can run more than one (tests spin up several Servers) without
// the second NewCollector panicking on a duplicate metric name.
type Collector struct {
	registry *prometheus.Registry

	ActionsTotal     *prometheus.CounterVec
	ActionsFailed    *prometheus.CounterVec
	MatchedFills     prometheus.Counter
	ActionLatency    prometheus.Histogram
	CommitmentHeight prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_actions_total",
			Help: "Total number of actions dispatched, by kind.",
		}, []string{"kind"}),
		ActionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_actions_failed_total",
			Help: "Total number of actions rejected, by kind and error kind.",
		}, []string{"kind", "error_kind"}),
		MatchedFills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbook_matched_fills_total",
			Help: "Total number of fills produced by the matching engine.",
		}),
		ActionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderbook_action_latency_seconds",
			Help:    "Wall-clock time to dispatch and commit one action.",
			Buckets: prometheus.DefBuckets,
		}),
		CommitmentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderbook_commitment_batch_index",
			Help: "Batch index of the most recently committed state.",
		}),
	}
	reg.MustRegister(c.ActionsTotal, c.ActionsFailed, c.MatchedFills, c.ActionLatency, c.CommitmentHeight)
	return c
}

// Registry exposes the collector's private registry for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) RecordAction(kind string, duration time.Duration, fills int, err error) {
	c.ActionLatency.Observe(duration.Seconds())
	if err != nil {
		c.ActionsFailed.WithLabelValues(kind, errs.KindOf(err).String()).Inc()
		return
	}
	c.ActionsTotal.WithLabelValues(kind).Inc()
	if fills > 0 {
		c.MatchedFills.Add(float64(fills))
	}
}

func (c *Collector) SetCommitmentHeight(batchIndex uint64) {
	c.CommitmentHeight.Set(float64(batchIndex))
}
