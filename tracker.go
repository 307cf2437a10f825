// Package stain tracks the provenance of untrusted text as it flows through
// a program. Values crossing a trust boundary are marked as sources; from
// then on, propagation-aware replacements for the ordinary string operations
// ("aspects") carry byte-offset taint ranges onto their results. At a sink,
// the accumulated ranges reconstruct exactly which spans of a value came
// from the outside world, and the evidence renderer produces a marked-up
// view of them for reporting.
//
// The engine is deliberately inert from the host program's point of view:
// every aspect returns exactly what the unwrapped operation would have
// returned, and every internal failure is contained and logged rather than
// surfaced. The worst possible outcome of an engine fault is that a value
// silently stops being tracked.
package stain

import (
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/stain/api/schemas"
)

// Engine tuning defaults. The budgets exist because the engine runs inside
// production request paths on adversarial input; unbounded growth is a
// worse failure mode than losing track of a value.
const (
	defaultMaxTrackedValues     = 1 << 14
	defaultMaxRangesPerValue    = 32
	defaultMaxSourceValueLength = 64
	defaultMaxInternedSources   = 4096
	defaultFailureLogInterval   = time.Second

	failureLogBurst = 4
)

// Config tunes a Tracker. The zero value of any field selects its default;
// a negative value disables the corresponding bound.
type Config struct {
	// MaxTrackedValues bounds the number of live tracked values. Once
	// reached, new registrations are dropped and counted, not queued.
	MaxTrackedValues int `mapstructure:"max_tracked_values" yaml:"max_tracked_values"`

	// MaxRangesPerValue bounds the range count a single value may carry.
	MaxRangesPerValue int `mapstructure:"max_ranges_per_value" yaml:"max_ranges_per_value"`

	// MaxSourceValueLength bounds the snippet of the original value kept on
	// each Source for reporting.
	MaxSourceValueLength int `mapstructure:"max_source_value_length" yaml:"max_source_value_length"`

	// MaxInternedSources bounds the source deduplication table.
	MaxInternedSources int `mapstructure:"max_interned_sources" yaml:"max_interned_sources"`

	// FailureLogInterval throttles containment diagnostics, since a single
	// propagation bug on a hot path would otherwise flood the log.
	FailureLogInterval time.Duration `mapstructure:"failure_log_interval" yaml:"failure_log_interval"`
}

// DefaultConfig returns the tuning used when no overrides are supplied.
func DefaultConfig() Config {
	return Config{
		MaxTrackedValues:     defaultMaxTrackedValues,
		MaxRangesPerValue:    defaultMaxRangesPerValue,
		MaxSourceValueLength: defaultMaxSourceValueLength,
		MaxInternedSources:   defaultMaxInternedSources,
		FailureLogInterval:   defaultFailureLogInterval,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	pick := func(v, def int) int {
		switch {
		case v == 0:
			return def
		case v < 0:
			return 0 // unlimited
		default:
			return v
		}
	}
	c.MaxTrackedValues = pick(c.MaxTrackedValues, d.MaxTrackedValues)
	c.MaxRangesPerValue = pick(c.MaxRangesPerValue, d.MaxRangesPerValue)
	c.MaxSourceValueLength = pick(c.MaxSourceValueLength, d.MaxSourceValueLength)
	c.MaxInternedSources = pick(c.MaxInternedSources, d.MaxInternedSources)
	if c.FailureLogInterval <= 0 {
		c.FailureLogInterval = d.FailureLogInterval
	}
	return c
}

// Stats is a point-in-time snapshot of the engine's counters. All values
// are process-local; the engine performs no telemetry of its own.
type Stats struct {
	Live            int    // currently tracked values
	TotalTracked    uint64 // new value registrations since construction
	Evicted         uint64 // rows reclaimed by lifetime cleanup
	Released        uint64 // rows removed via Release
	Dropped         uint64 // registrations dropped by budget limits
	ContainedFaults uint64 // aspect failures absorbed by the containment wrapper
	RenderFallbacks uint64 // evidence renders that fell back to the literal value
}

type counters struct {
	totalTracked    atomic.Uint64
	evicted         atomic.Uint64
	released        atomic.Uint64
	dropped         atomic.Uint64
	failures        atomic.Uint64
	renderFallbacks atomic.Uint64
}

// Tracker is the taint propagation engine: the range store, the source
// table and the containment policy behind every aspect. Construct one per
// process, or one per request scope when isolation between logical
// requests matters; there is no package-level instance.
type Tracker struct {
	cfg     Config
	logger  *zap.Logger
	store   *rangeStore
	sources *sourceInterner
	failLog *rate.Limiter
	stats   counters

	// propagationHook runs before any aspect's propagation step. Tests use
	// it to inject faults; it is never set in production paths.
	propagationHook func(aspect string) error
}

// New constructs a Tracker. A nil logger disables diagnostics.
func New(cfg Config, logger *zap.Logger) *Tracker {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:     cfg,
		logger:  logger.Named("taint"),
		store:   newRangeStore(cfg.MaxTrackedValues, cfg.MaxRangesPerValue),
		sources: newSourceInterner(cfg.MaxInternedSources),
		failLog: rate.NewLimiter(rate.Every(cfg.FailureLogInterval), failureLogBurst),
	}
}

// cleanupToken carries the row coordinates into a lifetime cleanup without
// referencing the tracked value itself.
type cleanupToken struct {
	key valueKey
	gen uint64
}

// register installs ranges for v and, for a brand-new row, attaches the
// cleanup that evicts the row when v's backing allocation dies. The token
// holds only the raw key, never a pointer, so the cleanup cannot keep the
// value alive; the generation check makes a stale cleanup for a reused
// address a no-op.
func register[T text](t *Tracker, v T, rs []TaintRange) error {
	k, ok := keyOf(v)
	if !ok {
		if len(rs) == 0 {
			return nil
		}
		return newInvalidRange("empty value cannot carry ranges", rs[0].Start, rs[0].Length, 0)
	}
	ptr := bytePointerOf(v)
	return t.store.set(k, len(v), rs, func(gen uint64) {
		t.stats.totalTracked.Add(1)
		runtime.AddCleanup(ptr, func(tok cleanupToken) {
			if t.store.evict(tok.key, tok.gen) {
				t.stats.evicted.Add(1)
			}
		}, cleanupToken{key: k, gen: gen})
	})
}

// storedRanges returns the store-owned slice for internal readers. Aspects
// must never mutate it; they build fresh slices for their outputs.
func storedRanges[T text](t *Tracker, v T) []TaintRange {
	k, ok := keyOf(v)
	if !ok {
		return nil
	}
	return t.store.get(k)
}

func (t *Tracker) rangesOf(v string) []TaintRange      { return storedRanges(t, v) }
func (t *Tracker) rangesOfBytes(b []byte) []TaintRange { return storedRanges(t, b) }

// MarkAsSource records v as untrusted input, attributing the whole value to
// a single source. The returned string is a private copy: marking never
// mutates or re-registers caller-owned memory, and the engine owns the
// allocation it tracks. Call it at the boundary where the value enters,
// e.g. request decoding.
func (t *Tracker) MarkAsSource(v, name string, origin schemas.Origin) string {
	if len(v) == 0 {
		return v
	}
	res := strings.Clone(v)
	src := t.sources.intern(name, origin, truncateSnippet(v, t.cfg.MaxSourceValueLength))
	t.contain("mark_as_source", func() error {
		return register(t, res, []TaintRange{{Start: 0, Length: len(res), Source: src}})
	})
	return res
}

// MarkBytesAsSource is MarkAsSource for byte slices.
func (t *Tracker) MarkBytesAsSource(b []byte, name string, origin schemas.Origin) []byte {
	if len(b) == 0 {
		return b
	}
	res := slices.Clone(b)
	src := t.sources.intern(name, origin, truncateSnippet(string(b), t.cfg.MaxSourceValueLength))
	t.contain("mark_bytes_as_source", func() error {
		return register(t, res, []TaintRange{{Start: 0, Length: len(res), Source: src}})
	})
	return res
}

// IsTracked reports whether v currently carries taint ranges. Untracked
// lookups cost one shard read lock and allocate nothing.
func (t *Tracker) IsTracked(v string) bool {
	k, ok := keyOf(v)
	return ok && t.store.has(k)
}

// IsTrackedBytes is IsTracked for byte slices.
func (t *Tracker) IsTrackedBytes(b []byte) bool {
	k, ok := keyOf(b)
	return ok && t.store.has(k)
}

// Ranges returns v's taint ranges sorted by start, or nil when v is
// untracked. The result is a copy; mutating it cannot disturb the store.
func (t *Tracker) Ranges(v string) []TaintRange {
	return slices.Clone(t.rangesOf(v))
}

// RangesBytes is Ranges for byte slices.
func (t *Tracker) RangesBytes(b []byte) []TaintRange {
	return slices.Clone(t.rangesOfBytes(b))
}

// SetRanges replaces v's ranges wholesale. Input must be sorted by start,
// strictly positive in length and inside v's bounds; violations return
// InvalidRangeError and leave the previous state untouched. An empty
// sequence releases the entry. This is the raw store contract, exposed for
// instrumentation layers that compute ranges themselves.
func (t *Tracker) SetRanges(v string, ranges []TaintRange) error {
	return register(t, v, slices.Clone(ranges))
}

// SetRangesBytes is SetRanges for byte slices.
func (t *Tracker) SetRangesBytes(b []byte, ranges []TaintRange) error {
	return register(t, b, slices.Clone(ranges))
}

// CopyRanges installs from's range sequence against to's identity, sharing
// the same Source references. It is the fast path for aspects and shims
// whose output is an identical-content copy of their input. When from is
// untracked it does nothing.
func (t *Tracker) CopyRanges(from, to string) error {
	rs := t.rangesOf(from)
	if len(rs) == 0 {
		return nil
	}
	return register(t, to, slices.Clone(rs))
}

// Release drops v's entry immediately. Instrumentation layers that know a
// value's lifetime call this instead of waiting for the collector-driven
// cleanup; both paths are safe to mix.
func (t *Tracker) Release(v string) {
	k, ok := keyOf(v)
	if !ok {
		return
	}
	if t.store.release(k) {
		t.stats.released.Add(1)
	}
}

// ReleaseBytes is Release for byte slices.
func (t *Tracker) ReleaseBytes(b []byte) {
	k, ok := keyOf(b)
	if !ok {
		return
	}
	if t.store.release(k) {
		t.stats.released.Add(1)
	}
}

// Reset drops every tracked value and the interned source table. Counters
// keep accumulating. Intended for request-scope teardown and test
// isolation.
func (t *Tracker) Reset() {
	t.store.reset()
	t.sources.reset()
}

// Stats returns a snapshot of the engine's counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Live:            t.store.len(),
		TotalTracked:    t.stats.totalTracked.Load(),
		Evicted:         t.stats.evicted.Load(),
		Released:        t.stats.released.Load(),
		Dropped:         t.stats.dropped.Load(),
		ContainedFaults: t.stats.failures.Load(),
		RenderFallbacks: t.stats.renderFallbacks.Load(),
	}
}
