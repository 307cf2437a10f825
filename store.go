package stain

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// shardCount is a power of two; keys are distributed by hash.
const shardCount = 64

// Budget overflows are deliberate drops, not programming errors: the engine
// degrades to "this value is untracked" instead of growing without bound
// under adversarial traffic.
var (
	errStoreFull   = errors.New("tracked value budget exhausted")
	errRangeBudget = errors.New("per-value range budget exhausted")
)

func isBudgetErr(err error) bool {
	return errors.Is(err, errStoreFull) || errors.Is(err, errRangeBudget)
}

// entry is one tracked-value row. The ranges slice is owned exclusively by
// the row and replaced wholesale on every update; it is never mutated
// through an alias. gen guards the row against stale cleanups after the
// underlying address is reused by a later allocation.
type entry struct {
	gen    uint64
	ranges []TaintRange
}

type shard struct {
	mu sync.RWMutex
	m  map[valueKey]entry
}

// rangeStore is the process-wide association between live text values and
// their taint ranges. It holds no reference to the values themselves, only
// their identity keys, so it can never extend a value's lifetime. Rows are
// evicted by the cleanup the tracker attaches at registration time, or
// explicitly through release.
type rangeStore struct {
	shards [shardCount]shard

	// gen issues registration generations. Monotonic across the store so a
	// cleanup scheduled for a dead value can never evict the row of a new
	// value that happens to reuse the same address and length.
	gen atomic.Uint64

	live atomic.Int64

	maxEntries int
	maxRanges  int
}

func newRangeStore(maxEntries, maxRanges int) *rangeStore {
	s := &rangeStore{maxEntries: maxEntries, maxRanges: maxRanges}
	for i := range s.shards {
		s.shards[i].m = make(map[valueKey]entry)
	}
	return s
}

func (s *rangeStore) shardFor(k valueKey) *shard {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(k.data))
	binary.LittleEndian.PutUint64(buf[8:], uint64(k.len))
	return &s.shards[xxhash.Sum64(buf[:])&(shardCount-1)]
}

// has is the untracked fast path: one read lock, one map probe, no
// allocation.
func (s *rangeStore) has(k valueKey) bool {
	sh := s.shardFor(k)
	sh.mu.RLock()
	_, ok := sh.m[k]
	sh.mu.RUnlock()
	return ok
}

// get returns the row's range slice. The slice is owned by the store;
// internal callers must treat it as read-only and public accessors must
// clone it before handing it out.
func (s *rangeStore) get(k valueKey) []TaintRange {
	sh := s.shardFor(k)
	sh.mu.RLock()
	e, ok := sh.m[k]
	sh.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.ranges
}

// set validates ranges against the value's current length and replaces the
// row wholesale. For a brand-new row it issues a generation and invokes
// attach (under the shard lock) so the caller can wire lifetime cleanup
// exactly once per row. Replacing an existing row keeps its generation: the
// value object is still the same allocation, so its existing cleanup
// remains correct.
func (s *rangeStore) set(k valueKey, valueLen int, ranges []TaintRange, attach func(gen uint64)) error {
	if err := validateRanges(ranges, valueLen); err != nil {
		return err
	}
	if s.maxRanges > 0 && len(ranges) > s.maxRanges {
		return errRangeBudget
	}

	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.m[k]; ok {
		if len(ranges) == 0 {
			delete(sh.m, k)
			s.live.Add(-1)
			return nil
		}
		sh.m[k] = entry{gen: e.gen, ranges: ranges}
		return nil
	}

	if len(ranges) == 0 {
		return nil
	}
	if s.maxEntries > 0 && int(s.live.Load()) >= s.maxEntries {
		return errStoreFull
	}
	gen := s.gen.Add(1)
	sh.m[k] = entry{gen: gen, ranges: ranges}
	s.live.Add(1)
	if attach != nil {
		attach(gen)
	}
	return nil
}

// evict removes the row only when its generation still matches; stale
// cleanups for reused addresses fall through harmlessly.
func (s *rangeStore) evict(k valueKey, gen uint64) bool {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.m[k]
	if !ok || e.gen != gen {
		return false
	}
	delete(sh.m, k)
	s.live.Add(-1)
	return true
}

// release removes the row unconditionally.
func (s *rangeStore) release(k valueKey) bool {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[k]; !ok {
		return false
	}
	delete(sh.m, k)
	s.live.Add(-1)
	return true
}

// reset drops every row. Pending cleanups from before the reset carry
// generations that no longer match anything, so they cannot disturb rows
// registered afterwards.
func (s *rangeStore) reset() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		s.live.Add(-int64(len(sh.m)))
		clear(sh.m)
		sh.mu.Unlock()
	}
}

func (s *rangeStore) len() int {
	return int(s.live.Load())
}
