package multi

import (
	"time"

	"goflare.io/foldscope/internal/models"
)

// TTLManager decides freshness at read time. Nothing is expired actively;
// stale entries stay in storage until overwritten.
type TTLManager struct {
	ttl time.Duration
	now func() time.Time
}

// NewTTLManager creates a TTLManager with a fixed ttl.
func NewTTLManager(ttl time.Duration, now func() time.Time) *TTLManager {
	if now == nil {
		now = time.Now
	}
	return &TTLManager{ttl: ttl, now: now}
}

// Now returns the current time.
func (tm *TTLManager) Now() time.Time {
	return tm.now()
}

// TTL returns the configured time-to-live.
func (tm *TTLManager) TTL() time.Duration {
	return tm.ttl
}

// IsFresh reports whether entry is younger than the ttl.
func (tm *TTLManager) IsFresh(entry *models.Entry) bool {
	return !entry.IsStale(tm.now(), tm.ttl)
}
