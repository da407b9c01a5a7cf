package models

import "go.uber.org/atomic"

// Metrics counts cache outcomes.
type Metrics struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Stale         atomic.Int64
	StorageErrors atomic.Int64
	Dropped       atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Stale         int64 `json:"stale"`
	StorageErrors int64 `json:"storageErrors"`
	Dropped       int64 `json:"dropped"`
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		Stale:         m.Stale.Load(),
		StorageErrors: m.StorageErrors.Load(),
		Dropped:       m.Dropped.Load(),
	}
}
