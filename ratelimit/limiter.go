// Package ratelimit implements the gateway's per-identity fixed-window
// request limiter. State is process-local; nothing is persisted.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// shardCount trades memory for lock contention. Admits for identities on
// different shards never serialize against each other.
const shardCount = 32

// Decision reports the outcome of a single Admit call.
type Decision struct {
	Allowed bool

	// Limit is the configured maximum requests per window.
	Limit int

	// Remaining is the request budget left in the current window, never
	// negative.
	Remaining int

	// ResetAt is when the current window expires and the budget refills.
	ResetAt time.Time

	// RetryAfter is how long a denied caller should wait before retrying,
	// rounded up to whole seconds. Zero when allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter in whole seconds, at least 1 for a
// denied decision.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Stats aggregates limiter state across all identities.
type Stats struct {
	// ActiveUsers is the number of identities with a live window.
	ActiveUsers int `json:"activeUsers"`

	// TrackedRequests is the sum of request counts across live windows.
	// Denied attempts are included: every Admit call counts toward the
	// window, so a denied-then-retry loop cannot reset quota early.
	TrackedRequests int `json:"trackedRequests"`
}

// window is the per-identity mutable record. Guarded by its shard's mutex.
type window struct {
	start time.Time
	count int
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter is a concurrency-safe fixed-window rate limiter keyed by caller
// identity. Windows are created lazily on first admit and overwritten in
// place once they age out, so per-identity memory is constant.
type Limiter struct {
	limit  int
	window time.Duration
	shards [shardCount]*shard
	logger *zap.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewLimiter creates a Limiter allowing limit requests per window duration
// for each identity.
func NewLimiter(limit int, windowDur time.Duration, logger *zap.Logger) *Limiter {
	l := &Limiter{
		limit:  limit,
		window: windowDur,
		logger: logger,
		now:    time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return l
}

// Admit records a request from the given identity and decides whether it is
// within budget. It never fails: every call returns a usable decision.
//
// Denied calls still increment the window count (see Stats).
func (l *Limiter) Admit(key string) Decision {
	now := l.now()
	s := l.shardFor(key)

	s.mu.Lock()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) > l.window {
		w = &window{start: now, count: 0}
		s.windows[key] = w
	}
	w.count++
	count := w.count
	resetAt := w.start.Add(l.window)
	s.mu.Unlock()

	d := Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-count),
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		l.logger.Debug("rate limit exceeded",
			zap.String("identity", key),
			zap.Int("count", count),
			zap.Time("reset_at", resetAt))
	}
	return d
}

// Stats walks all shards and reports identities whose window is still live.
// Expired windows are pruned as a side effect, bounding memory for callers
// that have gone quiet.
func (l *Limiter) Stats() Stats {
	now := l.now()
	var stats Stats
	for _, s := range l.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if now.Sub(w.start) > l.window {
				delete(s.windows, key)
				continue
			}
			stats.ActiveUsers++
			stats.TrackedRequests += w.count
		}
		s.mu.Unlock()
	}
	return stats
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}
