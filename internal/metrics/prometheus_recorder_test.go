package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("write", 150*time.Millisecond)
	pr.ObservePublishDuration(500 * time.Millisecond)
	pr.IncStepResult("write", ResultSuccess)
	pr.IncPublishOutcome("success")
	pr.IncJobEvicted("expired")
	pr.SetActiveJobs(2)
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}
