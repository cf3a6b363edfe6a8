// SPDX-License-Identifier: MPL-2.0

// Package metrics exports Prometheus metrics about discovery and resolution
// runs. Runs are short-lived, so metrics are written to a node exporter
// textfile instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/engine"
)

const namespace = "modsolve"

// OutcomeResolved labels successful resolutions.
const OutcomeResolved = "resolved"

// Collector holds all Prometheus metrics of the engine. It implements
// engine.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	// Discovery metrics
	DiscoveryRuns       prometheus.Counter
	DiscoveryDuration   prometheus.Histogram
	Candidates          prometheus.Gauge
	NonModules          prometheus.Gauge
	Excluded            prometheus.Gauge
	DiagnosticsReported *prometheus.CounterVec

	// Resolution metrics
	Resolutions        *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	Selected           prometheus.Gauge
	SearchSteps        prometheus.Gauge
	Backtracks         prometheus.Gauge
	Conflicts          prometheus.Gauge
	UnmetRecommends    prometheus.Gauge
}

var _ engine.Recorder = (*Collector)(nil)

// New creates a collector registered on a fresh registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,

		DiscoveryRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Total number of discovery runs",
		}),
		DiscoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Discovery duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Candidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_candidates",
			Help:      "Candidates found by the last discovery run, builtins included",
		}),
		NonModules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_non_modules",
			Help:      "Locations without a usable descriptor in the last discovery run",
		}),
		Excluded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_excluded",
			Help:      "Modules excluded by environment in the last discovery run",
		}),
		DiagnosticsReported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_diagnostics_total",
			Help:      "Total discovery diagnostics by severity and code",
		}, []string{"severity", "code"}),

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total resolutions by outcome",
		}, []string{"outcome"}),
		ResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Resolution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		Selected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_selected",
			Help:      "Modules selected by the last successful resolution",
		}),
		SearchSteps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_search_steps",
			Help:      "Search steps taken by the last resolution",
		}),
		Backtracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_backtracks",
			Help:      "Backtracks taken by the last resolution",
		}),
		Conflicts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_conflicts",
			Help:      "Conflicts reported by the last failed resolution",
		}),
		UnmetRecommends: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolution_unmet_recommendations",
			Help:      "Unmet recommendations of the last successful resolution",
		}),
	}
}

// ObserveDiscovery implements engine.Recorder.
func (c *Collector) ObserveDiscovery(res *discovery.Result, elapsed time.Duration) {
	c.DiscoveryRuns.Inc()
	c.DiscoveryDuration.Observe(elapsed.Seconds())
	c.Candidates.Set(float64(len(res.Candidates)))
	c.NonModules.Set(float64(len(res.NonModules)))
	c.Excluded.Set(float64(len(res.Excluded)))
	for _, d := range res.Diagnostics {
		c.DiagnosticsReported.WithLabelValues(string(d.Severity), d.Code.String()).Inc()
	}
}

// ObserveResolution implements engine.Recorder.
func (c *Collector) ObserveResolution(rep *engine.Report) {
	c.ResolutionDuration.Observe(rep.ResolveElapsed.Seconds())

	switch {
	case rep.Result != nil:
		stats := rep.Result.Stats()
		c.Resolutions.WithLabelValues(OutcomeResolved).Inc()
		c.Selected.Set(float64(len(rep.Result.Selected())))
		c.UnmetRecommends.Set(float64(len(rep.Result.UnmetRecommendations())))
		c.Conflicts.Set(0)
		c.SearchSteps.Set(float64(stats.Steps))
		c.Backtracks.Set(float64(stats.Backtracks))
	case rep.Failure != nil:
		c.Resolutions.WithLabelValues(rep.Failure.Kind.String()).Inc()
		c.Conflicts.Set(float64(len(rep.Failure.Conflicts)))
		c.SearchSteps.Set(float64(rep.Failure.Stats.Steps))
		c.Backtracks.Set(float64(rep.Failure.Stats.Backtracks))
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.gatherer)
}
