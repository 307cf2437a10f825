package stain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stain/api/schemas"
)

func TestTaintRange_Clipped(t *testing.T) {
	r := TaintRange{Start: 4, Length: 6} // covers [4, 10)

	tests := []struct {
		name   string
		lo, hi int
		want   TaintRange
		ok     bool
	}{
		{name: "window inside range", lo: 5, hi: 8, want: TaintRange{Start: 0, Length: 3}, ok: true},
		{name: "range inside window", lo: 0, hi: 20, want: TaintRange{Start: 4, Length: 6}, ok: true},
		{name: "overlap on the left", lo: 0, hi: 6, want: TaintRange{Start: 4, Length: 2}, ok: true},
		{name: "overlap on the right", lo: 8, hi: 16, want: TaintRange{Start: 0, Length: 2}, ok: true},
		{name: "window before range", lo: 0, hi: 4, ok: false},
		{name: "window after range", lo: 10, hi: 12, ok: false},
		{name: "empty window", lo: 5, hi: 5, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.clipped(tt.lo, tt.hi)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAppendClipped_NeverEmitsEmptyRanges(t *testing.T) {
	src := []TaintRange{
		{Start: 0, Length: 2},
		{Start: 2, Length: 2},
		{Start: 8, Length: 2},
	}
	out := appendClipped(nil, src, 2, 8, 0)
	require.Len(t, out, 1)
	assert.Equal(t, TaintRange{Start: 0, Length: 2}, out[0])
	for _, r := range out {
		assert.Positive(t, r.Length)
	}
}

func TestClampRanges(t *testing.T) {
	rs := []TaintRange{
		{Start: 0, Length: 4},
		{Start: 2, Length: 6}, // extends past the clamp, gets trimmed
		{Start: 6, Length: 2}, // starts beyond the clamp, dropped
	}
	got := clampRanges(rs, 5)
	require.Len(t, got, 2)
	assert.Equal(t, TaintRange{Start: 0, Length: 4}, got[0])
	assert.Equal(t, TaintRange{Start: 2, Length: 3}, got[1])
}

func TestRangeHash_ContentNotPointerIdentity(t *testing.T) {
	// Two distinct Source objects with the same triple must hash equal, so
	// hashes can correlate ranges across separately serialized reports.
	s1 := &Source{Name: "user_input", Origin: schemas.OriginQueryParam, Value: "evil"}
	s2 := &Source{Name: "user_input", Origin: schemas.OriginQueryParam, Value: "evil"}
	r1 := TaintRange{Start: 3, Length: 5, Source: s1}
	r2 := TaintRange{Start: 3, Length: 5, Source: s2}

	assert.Equal(t, r1.Hash(), r2.Hash())
	// Compared with ==, not assert.NotEqual: testify's DeepEqual follows the
	// Source pointers and would see the content-equal triples as equal.
	assert.False(t, r1.Key() == r2.Key(), "identity keys still distinguish the pointers")

	r3 := TaintRange{Start: 3, Length: 5, Source: &Source{Name: "other"}}
	assert.NotEqual(t, r1.Hash(), r3.Hash())
}

func TestRangeSpan_Projection(t *testing.T) {
	src := &Source{Name: "hdr", Origin: schemas.OriginHeader, Value: "v"}
	r := TaintRange{Start: 1, Length: 2, Source: src}

	span := r.Span()
	assert.Equal(t, 1, span.Start)
	assert.Equal(t, 2, span.Length)
	assert.Equal(t, r.Hash(), span.Hash)
	assert.Equal(t, schemas.SourceRef{Name: "hdr", Origin: schemas.OriginHeader, Value: "v"}, span.Source)

	bare := TaintRange{Start: 0, Length: 1}
	assert.Equal(t, schemas.SourceRef{}, bare.Span().Source)
}

func TestRangeMapping_Lookup(t *testing.T) {
	src := &Source{Name: "s"}
	key := TaintRange{Start: 0, Length: 4, Source: src}.Key()

	t.Run("nil mapping", func(t *testing.T) {
		var m RangeMapping
		_, status := m.Lookup(key)
		assert.Equal(t, MapStatusNoMapping, status)
	})

	t.Run("absent key", func(t *testing.T) {
		m := RangeMapping{}
		_, status := m.Lookup(key)
		assert.Equal(t, MapStatusNotMapped, status)
	})

	t.Run("present key", func(t *testing.T) {
		want := TaintRange{Start: 9, Length: 1, Source: src}
		m := RangeMapping{key: want}
		got, status := m.Lookup(key)
		assert.Equal(t, MapStatusMapped, status)
		assert.Equal(t, want, got)
	})
}

func TestRangeMapping_ApplyIsIdempotent(t *testing.T) {
	src := &Source{Name: "s"}
	orig := TaintRange{Start: 0, Length: 4, Source: src}
	sub := TaintRange{Start: 2, Length: 2, Source: src}
	unrelated := TaintRange{Start: 8, Length: 1, Source: src}

	m := RangeMapping{orig.Key(): sub}
	rs := []TaintRange{orig, unrelated}

	once := m.Apply(rs)
	require.Equal(t, []TaintRange{sub, unrelated}, once)

	twice := m.Apply(once)
	assert.Equal(t, once, twice, "re-applying the same mapping must not fabricate changes")

	assert.Equal(t, TaintRange{Start: 0, Length: 4, Source: src}, rs[0], "input slice stays untouched")
}
