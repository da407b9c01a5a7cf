package models

import (
	"time"

	"go.uber.org/atomic"
)

// Entry is one cached payload. Payload holds the encoded value and is
// treated as immutable once stored.
type Entry struct {
	Key      string    `json:"key"`
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"storedAt"`

	accessCount *atomic.Int64
}

// NewEntry creates an entry stored at the given time.
func NewEntry(key string, payload []byte, storedAt time.Time) *Entry {
	return &Entry{
		Key:         key,
		Payload:     payload,
		StoredAt:    storedAt,
		accessCount: atomic.NewInt64(0),
	}
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// IsStale reports whether the entry is at least ttl old.
func (e *Entry) IsStale(now time.Time, ttl time.Duration) bool {
	return e.Age(now) >= ttl
}

// IncrementAccess records a hit served from this entry. Entries not built by NewEntry are not counted.
func (e *Entry) IncrementAccess() int64 {
	if e.accessCount == nil {
		return 0
	}
	return e.accessCount.Inc()
}

// AccessCount returns the number of hits served from this entry.
func (e *Entry) AccessCount() int64 {
	if e.accessCount == nil {
		return 0
	}
	return e.accessCount.Load()
}
