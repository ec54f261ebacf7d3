// README: Prometheus metrics for matching, commits, estimates and hazard snapshots.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics surface used by the dispatch core.
type Recorder interface {
	ObserveMatch(urgency, outcome string)
	ObserveCommit(outcome string, latency time.Duration)
	ObserveEstimate(planner string, fallback bool)
	SetHazardZones(n int)
}

// PromRecorder records dispatch-core events in Prometheus collectors.
type PromRecorder struct {
	matches       *prometheus.CounterVec
	commits       *prometheus.CounterVec
	commitLatency prometheus.Histogram
	estimates     *prometheus.CounterVec
	hazardZones   prometheus.Gauge
}

// NewPromRecorder registers the collectors on reg (the default registerer when
// nil). Already registered collectors are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferide_match_total",
			Help: "Driver matching attempts by urgency and outcome",
		}, []string{"urgency", "outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferide_commit_total",
			Help: "Dispatch commit attempts by outcome",
		}, []string{"outcome"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "saferide_commit_latency_seconds",
			Help:    "Time spent reserving a driver and assigning the trip",
			Buckets: prometheus.DefBuckets,
		}),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saferide_estimate_total",
			Help: "Route estimates by planner and whether the direct fallback was used",
		}, []string{"planner", "fallback"}),
		hazardZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saferide_hazard_zones",
			Help: "Active hazard zones in the current snapshot",
		}),
	}

	var err error
	if r.matches, err = register(reg, r.matches); err != nil {
		return nil, err
	}
	if r.commits, err = register(reg, r.commits); err != nil {
		return nil, err
	}
	if r.commitLatency, err = register(reg, r.commitLatency); err != nil {
		return nil, err
	}
	if r.estimates, err = register(reg, r.estimates); err != nil {
		return nil, err
	}
	if r.hazardZones, err = register(reg, r.hazardZones); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *PromRecorder) ObserveMatch(urgency, outcome string) {
	r.matches.WithLabelValues(urgency, outcome).Inc()
}

func (r *PromRecorder) ObserveCommit(outcome string, latency time.Duration) {
	r.commits.WithLabelValues(outcome).Inc()
	r.commitLatency.Observe(latency.Seconds())
}

func (r *PromRecorder) ObserveEstimate(planner string, fallback bool) {
	r.estimates.WithLabelValues(planner, strconv.FormatBool(fallback)).Inc()
}

func (r *PromRecorder) SetHazardZones(n int) {
	r.hazardZones.Set(float64(n))
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) ObserveMatch(string, string)         {}
func (NopRecorder) ObserveCommit(string, time.Duration) {}
func (NopRecorder) ObserveEstimate(string, bool)        {}
func (NopRecorder) SetHazardZones(int)                  {}
