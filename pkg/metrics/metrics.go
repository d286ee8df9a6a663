/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics.go
Description: Prometheus counters/gauges for the engine's external
observability surface, plus a streaming histogram of accepted-unit
complexity used for diagnostics logging. The coverage sensor and pool
never touch this package directly; the driver loop reports into it after
each Step, keeping the hot path metrics-free.
*/

package metrics

import (
	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric the engine reports. One Collector is
// normally shared across all lanes of a single process.
type Collector struct {
	Executions    prometheus.Counter
	UnitsAccepted prometheus.Counter
	UnitsEvicted  prometheus.Counter
	Crashes       prometheus.Counter

	PoolSize  prometheus.Gauge
	PoolScore prometheus.Gauge

	complexity *gohistogram.NumericHistogram
}

// NewCollector builds a Collector and registers its prometheus metrics
// with reg. Pass prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer-wrapping registry for process-wide export.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		Executions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "executions_total",
			Help: "Total number of target invocations across all lanes.",
		}),
		UnitsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "units_accepted_total",
			Help: "Total number of inputs accepted into the corpus.",
		}),
		UnitsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "units_evicted_total",
			Help: "Total number of units evicted by rescoring.",
		}),
		Crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "crashes_total",
			Help: "Total number of crashing executions.",
		}),
		PoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_size",
			Help: "Current number of live units in the corpus.",
		}),
		PoolScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_coverage_score",
			Help: "Current pool-wide coverage score.",
		}),
		complexity: gohistogram.NewHistogram(64),
	}

	for _, collector := range []prometheus.Collector{
		c.Executions, c.UnitsAccepted, c.UnitsEvicted, c.Crashes, c.PoolSize, c.PoolScore,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveComplexity feeds an accepted unit's complexity into the
// streaming histogram.
func (c *Collector) ObserveComplexity(complexity float64) {
	c.complexity.Add(complexity)
}

// ObserveExecution records one target invocation. Satisfies
// engine.Metrics so a Collector can be passed to Lane.SetMetrics directly.
func (c *Collector) ObserveExecution() {
	c.Executions.Inc()
}

// ObserveAccepted records one unit entering the corpus and folds its
// complexity into the running histogram.
func (c *Collector) ObserveAccepted(complexity float64) {
	c.UnitsAccepted.Inc()
	c.ObserveComplexity(complexity)
}

// ObserveEvicted records one unit leaving the corpus under rescoring.
func (c *Collector) ObserveEvicted() {
	c.UnitsEvicted.Inc()
}

// ObserveCrash records one crashing execution.
func (c *Collector) ObserveCrash() {
	c.Crashes.Inc()
}

// ComplexityQuantile returns the estimated q-th quantile (0 ≤ q ≤ 1) of
// accepted-unit complexity observed so far.
func (c *Collector) ComplexityQuantile(q float64) float64 {
	return c.complexity.Quantile(q)
}

// ComplexityMean returns the running mean of accepted-unit complexity.
func (c *Collector) ComplexityMean() float64 {
	return c.complexity.Mean()
}
