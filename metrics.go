package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	// MetricAccessSigned counts access tokens issued.
	MetricAccessSigned MetricID = iota
	// MetricRefreshSigned counts refresh tokens issued.
	MetricRefreshSigned
	// MetricClaimRejected counts sign calls rejected for a missing claim.
	MetricClaimRejected
	MetricAccessVerifySuccess
	MetricAccessVerifyFailure
	MetricRefreshVerifySuccess
	MetricRefreshVerifyFailure
	MetricPasswordHashed
	MetricPasswordVerifySuccess
	MetricPasswordVerifyFailure
	MetricOpaqueTokenHashed
	// MetricLoginSuccess counts completed gateway callbacks.
	MetricLoginSuccess
	MetricLoginFailure
	MetricLogout
	// MetricRefreshRotated counts gateway refresh exchanges.
	MetricRefreshRotated
	MetricRefreshRejected
	MetricAPITokenIssued
	MetricAPITokenAuthSuccess
	MetricAPITokenAuthFailure
	MetricAPITokenRevoked
	// MetricRateLimited counts requests refused by a rate limit.
	MetricRateLimited
	// MetricVerifyLatency is the token verification latency histogram.
	MetricVerifyLatency
	// MetricPasswordVerifyLatency is the password verification latency histogram.
	MetricPasswordVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// Upper bounds of the first seven buckets; the eighth is +Inf.
var histBucketBounds = [histBucketCount - 1]time.Duration{
	100 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and fixed-bucket latency histograms.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values. Histogram
// buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg. Latency histograms are only
// recorded when metrics are enabled as well.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id. It is safe on a nil receiver.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricVerifyLatency, MetricPasswordVerifyLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricVerifyLatency || id == MetricPasswordVerifyLatency
}

func bucketIndex(d time.Duration) int {
	for i, bound := range histBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
