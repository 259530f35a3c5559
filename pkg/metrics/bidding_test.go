package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBiddingMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewBiddingMetrics(reg)
	metrics.IncAccepted(BidSourceManual)
	metrics.IncAccepted(BidSourceAuto)
	metrics.IncRejected("VALIDATION_ERROR")
	metrics.ObserveCascadeDepth(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "bids_accepted_total", "source", BidSourceAuto); err != nil {
		t.Fatalf("fetch accepted: %v", err)
	} else if got != 1 {
		t.Fatalf("expected accepted=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "bids_rejected_total", "reason", "VALIDATION_ERROR"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejected=1, got %f", got)
	}

	if mf := findMetricFamily(mfs, "autobid_cascade_depth"); mf == nil {
		t.Fatal("cascade depth histogram not registered")
	} else if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 3 {
		t.Fatalf("expected cascade depth sum=3, got %f", sum)
	}
}

func TestBiddingMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewBiddingMetrics(nil)
	metrics.IncAccepted(BidSourceBuyNow)
	metrics.IncRejected("STATE_CONFLICT")
	metrics.ObserveCascadeDepth(1)
}
