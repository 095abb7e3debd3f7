// Package ratelimit enforces the gateway's per-account request quota over a
// sliding time window. State is process-local and resets on restart; it is
// not shared across horizontally scaled instances.
package ratelimit

import (
	"hash/fnv"
	"math"
	"sync"
	"time"
)

// Limiter decides whether an account may issue another request right now.
// When the answer is no, resetSeconds hints how long the caller should wait.
type Limiter interface {
	Allow(accountID string, now time.Time) (ok bool, resetSeconds int)
}

const shardCount = 32

type shard struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// SlidingWindow retains per-account request timestamps within the trailing
// window and rejects once the retained count reaches the limit. Shards keep
// unrelated accounts off the same lock.
type SlidingWindow struct {
	limit  int
	window time.Duration
	shards [shardCount]*shard
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	sw := &SlidingWindow{limit: limit, window: window}
	for i := range sw.shards {
		sw.shards[i] = &shard{hits: make(map[string][]time.Time)}
	}
	return sw
}

func (sw *SlidingWindow) shardFor(accountID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return sw.shards[h.Sum32()%shardCount]
}

// Allow prunes timestamps older than the window, then either rejects with the
// seconds until the oldest retained timestamp ages out, or records now and
// accepts.
func (sw *SlidingWindow) Allow(accountID string, now time.Time) (bool, int) {
	s := sw.shardFor(accountID)
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-sw.window)
	retained := s.hits[accountID][:0]
	for _, ts := range s.hits[accountID] {
		if ts.After(cutoff) {
			retained = append(retained, ts)
		}
	}

	if len(retained) >= sw.limit {
		s.hits[accountID] = retained
		reset := int(math.Ceil(retained[0].Add(sw.window).Sub(now).Seconds()))
		if reset < 1 {
			reset = 1
		}
		return false, reset
	}

	s.hits[accountID] = append(retained, now)
	return true, 0
}
