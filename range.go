package stain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/xkilldash9x/stain/api/schemas"
)

// TaintRange attributes one contiguous span of a tracked value to a single
// Source. Ranges are plain values: they are copied, never mutated in place,
// and any transformation produces a new range. Offsets are byte offsets
// into the owning value.
type TaintRange struct {
	Start  int
	Length int
	Source *Source
}

// End returns the exclusive end offset of the range.
func (r TaintRange) End() int { return r.Start + r.Length }

// Key returns the identity of the range: its offsets plus the Source
// pointer. Because sources are interned, two ranges describing the same
// span from the same logical source compare equal. This identity is the
// lookup key for mapping-based substitution and for deduplication.
type RangeKey struct {
	Start  int
	Length int
	Source *Source
}

// Key derives the identity key for the range.
func (r TaintRange) Key() RangeKey {
	return RangeKey{Start: r.Start, Length: r.Length, Source: r.Source}
}

// Hash returns a stable content hash of the range, derived from the offsets
// and the source triple rather than from pointer values, so it survives
// serialization and can correlate ranges across separate reports.
func (r TaintRange) Hash() uint64 {
	var d xxhash.Digest
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r.Start))
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(r.Length))
	_, _ = d.Write(buf[:])
	if r.Source != nil {
		_, _ = d.WriteString(r.Source.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(string(r.Source.Origin))
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(r.Source.Value)
	}
	return d.Sum64()
}

// Span projects the range into its serializable form.
func (r TaintRange) Span() schemas.Span {
	s := schemas.Span{Start: r.Start, Length: r.Length, Hash: r.Hash()}
	if r.Source != nil {
		s.Source = r.Source.Ref()
	}
	return s
}

// shifted returns a copy of the range moved by delta bytes.
func (r TaintRange) shifted(delta int) TaintRange {
	return TaintRange{Start: r.Start + delta, Length: r.Length, Source: r.Source}
}

// clipped rebases the range into the window [lo, hi). The result is
// expressed relative to lo. ok is false when the overlap is empty; empty
// or negative overlaps never yield a range.
func (r TaintRange) clipped(lo, hi int) (TaintRange, bool) {
	s := max(r.Start, lo)
	e := min(r.End(), hi)
	if e <= s {
		return TaintRange{}, false
	}
	return TaintRange{Start: s - lo, Length: e - s, Source: r.Source}, true
}

// appendShifted appends every range of src to dst, shifted by delta.
func appendShifted(dst, src []TaintRange, delta int) []TaintRange {
	for _, r := range src {
		dst = append(dst, r.shifted(delta))
	}
	return dst
}

// appendClipped appends the [lo, hi) overlap of every range of src to dst,
// rebased to lo and then shifted by delta. This is the slice arithmetic
// shared by every aspect that carves a window out of an input.
func appendClipped(dst, src []TaintRange, lo, hi, delta int) []TaintRange {
	for _, r := range src {
		if c, ok := r.clipped(lo, hi); ok {
			dst = append(dst, c.shifted(delta))
		}
	}
	return dst
}

// clampRanges bounds ranges to a value of the given length, trimming ranges
// that extend past the end and dropping ranges that start beyond it. Used
// by case aspects when a Unicode case mapping changes the byte length.
func clampRanges(rs []TaintRange, length int) []TaintRange {
	out := make([]TaintRange, 0, len(rs))
	for _, r := range rs {
		if r.Start >= length {
			continue
		}
		if r.End() > length {
			r.Length = length - r.Start
		}
		out = append(out, r)
	}
	return out
}

// validateRanges enforces the store's well-formedness contract: sorted by
// start, positive lengths, and bounds inside the owning value.
func validateRanges(rs []TaintRange, valueLen int) error {
	prev := -1
	for _, r := range rs {
		switch {
		case r.Length <= 0:
			return newInvalidRange("length must be positive", r.Start, r.Length, valueLen)
		case r.Start < 0:
			return newInvalidRange("start must be non-negative", r.Start, r.Length, valueLen)
		case r.End() > valueLen:
			return newInvalidRange("range extends past value end", r.Start, r.Length, valueLen)
		case r.Start < prev:
			return newInvalidRange("ranges must be sorted by start", r.Start, r.Length, valueLen)
		}
		prev = r.Start
	}
	return nil
}

// MapStatus reports the outcome of a RangeMapping lookup. The three cases
// are deliberately distinct so callers can tell "no mapping was supplied at
// all" apart from "a mapping was supplied but did not contain this range".
type MapStatus int

const (
	// MapStatusNoMapping means no mapping was provided (nil RangeMapping).
	MapStatusNoMapping MapStatus = iota
	// MapStatusNotMapped means a mapping was provided but the range was absent.
	MapStatusNotMapped
	// MapStatusMapped means the range was found and substituted.
	MapStatusMapped
)

// RangeMapping substitutes ranges by identity. Keys are the original
// ranges' identity keys; values are their replacements. Lookups go through
// the identity key rather than position so that repeated substitution with
// the same mapping is idempotent and never fabricates duplicates.
type RangeMapping map[RangeKey]TaintRange

// Lookup resolves key against the mapping.
func (m RangeMapping) Lookup(key RangeKey) (TaintRange, MapStatus) {
	if m == nil {
		return TaintRange{}, MapStatusNoMapping
	}
	if r, ok := m[key]; ok {
		return r, MapStatusMapped
	}
	return TaintRange{}, MapStatusNotMapped
}

// Apply returns rs with every mapped range replaced by its substitution;
// unmapped ranges pass through unmodified. The input slice is not touched.
func (m RangeMapping) Apply(rs []TaintRange) []TaintRange {
	if len(m) == 0 || len(rs) == 0 {
		return rs
	}
	out := make([]TaintRange, 0, len(rs))
	for _, r := range rs {
		if sub, status := m.Lookup(r.Key()); status == MapStatusMapped {
			out = append(out, sub)
			continue
		}
		out = append(out, r)
	}
	return out
}
