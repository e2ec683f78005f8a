package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gauntlet"

// Recorder counts engine activity for one run. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry     *prometheus.Registry
	judgeCalls   *prometheus.CounterVec
	judgeRetries prometheus.Counter
	judgeLatency *prometheus.HistogramVec
	scenarios    *prometheus.CounterVec
	detections   *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		judgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_calls_total",
			Help:      "Judge calls by response tier and outcome.",
		}, []string{"tier", "outcome"}),
		judgeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_retries_total",
			Help:      "Judge calls retried after a transient failure.",
		}),
		judgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_call_seconds",
			Help:      "Latency of a judge call including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}, []string{"tier"}),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_evaluated_total",
			Help:      "Scenarios evaluated by detection source and conflict severity.",
		}, []string{"source", "severity"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Unique component detections by component type.",
		}, []string{"component_type"}),
	}
	r.registry.MustRegister(r.judgeCalls, r.judgeRetries, r.judgeLatency, r.scenarios, r.detections)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) JudgeCall(tier, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.judgeCalls.WithLabelValues(tier, outcome).Inc()
	r.judgeLatency.WithLabelValues(tier).Observe(elapsed.Seconds())
}

func (r *Recorder) JudgeRetry() {
	if r == nil {
		return
	}
	r.judgeRetries.Inc()
}

func (r *Recorder) Scenario(source, severity string) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(source, severity).Inc()
}

func (r *Recorder) Detection(componentType string) {
	if r == nil {
		return
	}
	r.detections.WithLabelValues(componentType).Inc()
}

// WriteTextfile writes the current values in the node-exporter textfile
// format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
