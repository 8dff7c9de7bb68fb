package loginattempt

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// MemoryTracker keeps entries in a fixed number of shards, each guarded by
// its own mutex. Capacity is enforced per shard by dropping the
// below-threshold entry with the oldest failure. Expired entries are ignored
// on read and removed by Sweep.
type MemoryTracker struct {
	shards        [shardCount]*shard
	shardCapacity int
	maxAttempts   int
	ttl           time.Duration
	now           func() time.Time
}

func NewMemoryTracker(maxAttempts int, ttl time.Duration, capacity int) *MemoryTracker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	t := &MemoryTracker{
		shardCapacity: (capacity + shardCount - 1) / shardCount,
		maxAttempts:   maxAttempts,
		ttl:           ttl,
		now:           time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	return t
}

func (t *MemoryTracker) shardFor(username string) *shard {
	return t.shards[xxhash.Sum64String(username)%shardCount]
}

func (t *MemoryTracker) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.LastFailure) >= t.ttl
}

func (t *MemoryTracker) MaxAttempts() int {
	return t.maxAttempts
}

func (t *MemoryTracker) RecordFailure(_ context.Context, username string) (int, error) {
	s := t.shardFor(username)
	now := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[username]
	if ok && t.expired(e, now) {
		delete(s.entries, username)
		ok = false
	}
	if !ok {
		if len(s.entries) >= t.shardCapacity {
			t.evictOldestLocked(s, now)
		}
		e = &Entry{Username: username}
		s.entries[username] = e
	}

	e.FailedCount++
	e.LastFailure = now
	return e.FailedCount, nil
}

// evictOldestLocked drops expired entries and, when that frees nothing, the
// below-threshold entry whose last failure is oldest. Entries at the
// threshold are kept until they expire or are evicted explicitly, so a shard
// holding only those grows past its capacity. s.mu must be held.
func (t *MemoryTracker) evictOldestLocked(s *shard, now time.Time) {
	var oldest *Entry
	for name, e := range s.entries {
		if t.expired(e, now) {
			delete(s.entries, name)
			continue
		}
		if e.FailedCount >= t.maxAttempts {
			continue
		}
		if oldest == nil || e.LastFailure.Before(oldest.LastFailure) {
			oldest = e
		}
	}
	if len(s.entries) < t.shardCapacity {
		return
	}
	if oldest == nil {
		log.Warn().Int("entries", len(s.entries)).Msg("Login attempt shard full of locked entries")
		return
	}
	delete(s.entries, oldest.Username)
}

func (t *MemoryTracker) HasExceededMaxAttempts(_ context.Context, username string) (bool, error) {
	s := t.shardFor(username)
	now := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[username]
	if !ok {
		return false, nil
	}
	if t.expired(e, now) {
		delete(s.entries, username)
		return false, nil
	}
	return e.FailedCount >= t.maxAttempts, nil
}

func (t *MemoryTracker) Evict(_ context.Context, username string) error {
	s := t.shardFor(username)

	s.mu.Lock()
	delete(s.entries, username)
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the live entry for username.
func (t *MemoryTracker) Get(username string) (Entry, bool) {
	s := t.shardFor(username)
	now := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[username]
	if !ok || t.expired(e, now) {
		return Entry{}, false
	}
	return *e, true
}

// Sweep removes expired entries one shard at a time and returns how many
// were dropped.
func (t *MemoryTracker) Sweep() int {
	now := t.now()
	removed := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for name, e := range s.entries {
			if t.expired(e, now) {
				delete(s.entries, name)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (t *MemoryTracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Schedule registers Sweep on c using a standard cron spec such as "@every 1m".
func (t *MemoryTracker) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if n := t.Sweep(); n > 0 {
			log.Debug().Int("removed", n).Msg("Swept expired login attempt entries")
		}
	})
}
