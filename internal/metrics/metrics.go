// Package metrics exposes Prometheus counters for creator construction, node
// realization and convention application.
//
// A nil *Recorder is valid and records nothing, so components take an optional
// recorder without a separate no-op type.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modelcore"

// Realization outcomes.
const (
	OutcomeRealized = "realized"
	OutcomeFailed   = "failed"
)

// Recorder holds the counters for one configuration pass or process.
type Recorder struct {
	registry *prometheus.Registry

	creatorsBuilt      *prometheus.CounterVec
	nodesRealized      *prometheus.CounterVec
	conventionsApplied *prometheus.CounterVec
	applicationsFailed *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		creatorsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creators_built_total",
			Help:      "Model creators constructed, by schema kind.",
		}, []string{"kind"}),
		nodesRealized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_realized_total",
			Help:      "Graph node realizations, by outcome.",
		}, []string{"outcome"}),
		conventionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conventions_applied_total",
			Help:      "Action conventions invoked, by software type.",
		}, []string{"software_type"}),
		applicationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_failed_total",
			Help:      "Convention applications that returned an error, by software type and reason.",
		}, []string{"software_type", "reason"}),
	}
	r.registry.MustRegister(r.creatorsBuilt, r.nodesRealized, r.conventionsApplied, r.applicationsFailed)
	return r
}

// Gatherer returns the registry backing the recorder.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the current counters in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// CreatorBuilt counts a constructed creator.
func (r *Recorder) CreatorBuilt(kind string) {
	if r == nil {
		return
	}
	r.creatorsBuilt.WithLabelValues(kind).Inc()
}

// NodeRealized counts a realization attempt with its outcome.
func (r *Recorder) NodeRealized(outcome string) {
	if r == nil {
		return
	}
	r.nodesRealized.WithLabelValues(outcome).Inc()
}

// ConventionApplied counts one action convention invocation.
func (r *Recorder) ConventionApplied(softwareType string) {
	if r == nil {
		return
	}
	r.conventionsApplied.WithLabelValues(softwareType).Inc()
}

// ApplicationFailed counts a failed application.
func (r *Recorder) ApplicationFailed(softwareType, reason string) {
	if r == nil {
		return
	}
	r.applicationsFailed.WithLabelValues(softwareType, reason).Inc()
}

// CreatorsBuilt exposes the creator counter for tests.
func (r *Recorder) CreatorsBuilt() *prometheus.CounterVec { return r.creatorsBuilt }

// NodesRealized exposes the realization counter for tests.
func (r *Recorder) NodesRealized() *prometheus.CounterVec { return r.nodesRealized }

// ConventionsApplied exposes the convention counter for tests.
func (r *Recorder) ConventionsApplied() *prometheus.CounterVec { return r.conventionsApplied }

// ApplicationsFailed exposes the failure counter for tests.
func (r *Recorder) ApplicationsFailed() *prometheus.CounterVec { return r.applicationsFailed }
