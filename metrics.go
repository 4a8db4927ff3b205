package civiauth

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricSignUpSuccess counts completed signups.
	MetricSignUpSuccess MetricID = iota
	// MetricSignUpFailure counts rejected or failed signups.
	MetricSignUpFailure
	// MetricEmailVerifySuccess counts successful token exchanges.
	MetricEmailVerifySuccess
	// MetricEmailVerifyFailure counts failed token exchanges.
	MetricEmailVerifyFailure
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts failed password logins.
	MetricLoginFailure
	// MetricOTPRequestSuccess counts delivered one-time codes.
	MetricOTPRequestSuccess
	// MetricOTPRequestFailure counts failed code deliveries.
	MetricOTPRequestFailure
	// MetricOTPVerifySuccess counts successful code exchanges.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts failed code exchanges.
	MetricOTPVerifyFailure
	// MetricProfileCreateSuccess counts completed onboarding profiles.
	MetricProfileCreateSuccess
	// MetricProfileCreateFailure counts failed profile creations.
	MetricProfileCreateFailure
	// MetricProfileUpdateSuccess counts applied profile patches.
	MetricProfileUpdateSuccess
	// MetricProfileUpdateFailure counts rejected or failed patches.
	MetricProfileUpdateFailure
	// MetricLogout counts logout requests, including repeats.
	MetricLogout
	// MetricRefreshSuccess counts successful session refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed session refreshes.
	MetricRefreshFailure
	// MetricSnapshotPublished counts snapshot publications.
	MetricSnapshotPublished
	// MetricStateTransition counts account-state changes between
	// consecutive snapshots.
	MetricStateTransition
	// MetricStaleResultDiscarded counts fetch completions discarded by
	// the liveness guard after Close.
	MetricStaleResultDiscarded
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters for store operations. A nil or disabled
// Metrics turns every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance. When enabled is false all
// operations are no-ops.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of the counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
