package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Bid sources for the accepted-bids counter.
const (
	BidSourceManual = "manual"
	BidSourceAuto   = "auto"
	BidSourceBuyNow = "buy_now"
)

// BiddingMetrics tracks bid throughput and auto-bid cascade behaviour.
type BiddingMetrics struct {
	accepted     *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	cascadeDepth prometheus.Histogram
}

// NewBiddingMetrics registers the bidding metrics on the provided registerer.
func NewBiddingMetrics(reg prometheus.Registerer) *BiddingMetrics {
	if reg == nil {
		return &BiddingMetrics{}
	}
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Accepted bids by source.",
	}, []string{"source"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Rejected bids by error code.",
	}, []string{"reason"})
	cascadeDepth := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autobid_cascade_depth",
		Help:    "Number of auto-bid reactions triggered per accepted bid.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
	})
	reg.MustRegister(accepted, rejected, cascadeDepth)
	return &BiddingMetrics{
		accepted:     accepted,
		rejected:     rejected,
		cascadeDepth: cascadeDepth,
	}
}

// IncAccepted increments the accepted counter for the given bid source.
func (b *BiddingMetrics) IncAccepted(source string) {
	if b == nil || b.accepted == nil {
		return
	}
	b.accepted.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncRejected increments the rejected counter for the given reason.
func (b *BiddingMetrics) IncRejected(reason string) {
	if b == nil || b.rejected == nil {
		return
	}
	b.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveCascadeDepth records how many auto-bid follow-ups one bid triggered.
func (b *BiddingMetrics) ObserveCascadeDepth(depth int) {
	if b == nil || b.cascadeDepth == nil {
		return
	}
	b.cascadeDepth.Observe(float64(depth))
}
