package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpstream(t *testing.T) {
	t.Run("counts by status", func(t *testing.T) {
		before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-source", "429"))
		ObserveUpstream("test-source", 429, time.Now())

		after := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-source", "429"))
		if after-before != 1 {
			t.Errorf("expected counter to increase by 1, got %v", after-before)
		}
	})

	t.Run("zero status is a transport error", func(t *testing.T) {
		before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-source", "error"))
		ObserveUpstream("test-source", 0, time.Now())

		after := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test-source", "error"))
		if after-before != 1 {
			t.Errorf("expected error counter to increase by 1, got %v", after-before)
		}
	})
}

func TestObserveAggregation(t *testing.T) {
	ObserveAggregation("test-pipeline", time.Now().Add(-time.Second))

	if n := testutil.CollectAndCount(AggregationDuration); n == 0 {
		t.Error("expected aggregation histogram to have samples")
	}
}
