package middleware

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// TestIPLimiterEvictsIdleEntries verifies that a bucket idle past the timeout
// is dropped during a later lookup, while active buckets survive the sweep.
func TestIPLimiterEvictsIdleEntries(t *testing.T) {
	l := newIPLimiter(rate.Every(time.Second), 1)

	l.get("203.0.113.7")
	l.get("203.0.113.8")

	l.mu.Lock()
	l.limiters["203.0.113.7"].lastSeen = time.Now().Add(-limiterIdleTimeout - time.Minute)
	l.lastEvict = time.Now().Add(-limiterEvictInterval - time.Second)
	l.mu.Unlock()

	l.get("203.0.113.9")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.limiters["203.0.113.7"]; ok {
		t.Error("expected idle bucket to be evicted")
	}
	if _, ok := l.limiters["203.0.113.8"]; !ok {
		t.Error("expected active bucket to survive the sweep")
	}
	if _, ok := l.limiters["203.0.113.9"]; !ok {
		t.Error("expected the bucket for the triggering lookup to exist")
	}
}

// TestIPLimiterSweepRespectsInterval verifies lookups inside the eviction
// interval do not sweep, so get stays cheap on the hot path.
func TestIPLimiterSweepRespectsInterval(t *testing.T) {
	l := newIPLimiter(rate.Every(time.Second), 1)

	l.get("203.0.113.7")

	l.mu.Lock()
	l.limiters["203.0.113.7"].lastSeen = time.Now().Add(-limiterIdleTimeout - time.Minute)
	l.mu.Unlock()

	l.get("203.0.113.8")

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.limiters["203.0.113.7"]; !ok {
		t.Error("expected no sweep before the eviction interval elapsed")
	}
}
