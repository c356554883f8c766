package kaijuauth

import "sync/atomic"

// MetricID defines a public type used by kaijuauth APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication service.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication service.
	MetricLoginFailure
	// MetricMethodDisabled is an exported constant or variable used by the authentication service.
	MetricMethodDisabled
	// MetricTokenIssued is an exported constant or variable used by the authentication service.
	MetricTokenIssued
	// MetricTokenRefreshed is an exported constant or variable used by the authentication service.
	MetricTokenRefreshed
	// MetricTokenVerifyFailure is an exported constant or variable used by the authentication service.
	MetricTokenVerifyFailure
	// MetricSessionCreated is an exported constant or variable used by the authentication service.
	MetricSessionCreated
	// MetricSessionLoaded is an exported constant or variable used by the authentication service.
	MetricSessionLoaded
	// MetricSessionPersisted is an exported constant or variable used by the authentication service.
	MetricSessionPersisted
	// MetricLogout is an exported constant or variable used by the authentication service.
	MetricLogout
	// MetricKeyRotated is an exported constant or variable used by the authentication service.
	MetricKeyRotated
	// MetricKeyPublishFailure is an exported constant or variable used by the authentication service.
	MetricKeyPublishFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics is
// a no-op, so call sites never branch on configuration.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by kaijuauth APIs.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
