package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stepDuration    *prom.HistogramVec
	publishDuration prom.Histogram
	stepResults     *prom.CounterVec
	publishOutcome  *prom.CounterVec
	jobsEvicted     *prom.CounterVec
	activeJobs      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "publish_step_duration_seconds",
			Help:      "Duration of individual publish steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"})
		pr.publishDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "publish_duration_seconds",
			Help:      "Total publish job duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stepResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "publish_step_results_total",
			Help:      "Publish step result counts by outcome",
		}, []string{"step", "result"})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "publish_outcomes_total",
			Help:      "Publish job outcomes by final status",
		}, []string{"outcome"})
		pr.jobsEvicted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "publish_jobs_evicted_total",
			Help:      "Publish jobs evicted from the job table by reason",
		}, []string{"reason"})
		pr.activeJobs = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitebuilder",
			Name:      "publish_active_jobs",
			Help:      "Publish jobs currently tracked in the job table",
		})
		reg.MustRegister(pr.stepDuration, pr.publishDuration, pr.stepResults, pr.publishOutcome, pr.jobsEvicted, pr.activeJobs)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPublishOutcome(outcome string) {
	if p == nil || p.publishOutcome == nil {
		return
	}
	p.publishOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncJobEvicted(reason string) {
	if p == nil || p.jobsEvicted == nil {
		return
	}
	p.jobsEvicted.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetActiveJobs(n int) {
	if p == nil || p.activeJobs == nil {
		return
	}
	p.activeJobs.Set(float64(n))
}
