package stain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stain/api/schemas"
)

func TestSlice(t *testing.T) {
	t.Run("full window preserves everything", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("hello world", "src", schemas.OriginBody)

		res := tr.Slice(v, 0, len(v))

		assert.Equal(t, v, res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, TaintRange{Start: 0, Length: 11, Source: rs[0].Source}, rs[0])
	})

	t.Run("window rebases the overlap", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("hello world", "src", schemas.OriginBody)

		res := tr.Slice(v, 6, 11)

		require.Equal(t, "world", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, 0, rs[0].Start)
		assert.Equal(t, 5, rs[0].Length)
	})

	t.Run("partial overlaps clip, outside ranges drop", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("hello world", "src", schemas.OriginBody)
		src := tr.Ranges(v)[0].Source
		require.NoError(t, tr.SetRanges(v, []TaintRange{
			{Start: 0, Length: 5, Source: src}, // "hello"
			{Start: 6, Length: 5, Source: src}, // "world"
		}))

		res := tr.Slice(v, 3, 8)

		require.Equal(t, "lo wo", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 2)
		assert.Equal(t, TaintRange{Start: 0, Length: 2, Source: src}, rs[0])
		assert.Equal(t, TaintRange{Start: 3, Length: 2, Source: src}, rs[1])
	})

	t.Run("window over untainted bytes yields untracked result", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("hello world", "src", schemas.OriginBody)
		src := tr.Ranges(v)[0].Source
		require.NoError(t, tr.SetRanges(v, []TaintRange{{Start: 0, Length: 5, Source: src}}))

		res := tr.Slice(v, 5, 6)

		assert.Equal(t, " ", res)
		assert.False(t, tr.IsTracked(res))
	})

	t.Run("host panics pass through untouched", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("short", "src", schemas.OriginBody)

		assert.Panics(t, func() { tr.Slice(v, 0, len(v)+1) },
			"out-of-range indexes behave exactly as the bare expression")
	})
}

func TestSliceBytes(t *testing.T) {
	tr := newTestTracker(t)
	b := tr.MarkBytesAsSource([]byte("0123456789"), "src", schemas.OriginBody)

	res := tr.SliceBytes(b, 2, 6)

	require.Equal(t, []byte("2345"), res)
	rs := tr.RangesBytes(res)
	require.Len(t, rs, 1)
	assert.Equal(t, 0, rs[0].Start)
	assert.Equal(t, 4, rs[0].Length)

	// Full-capacity check: the result must not allow appends to scribble
	// over the parent's bytes.
	res = append(res, '!')
	assert.Equal(t, byte('6'), b[6])
}

func TestTrimAspects(t *testing.T) {
	t.Run("trim space", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("  evil  ", "src", schemas.OriginHeader)

		res := tr.TrimSpace(v)

		require.Equal(t, "evil", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, 0, rs[0].Start)
		assert.Equal(t, 4, rs[0].Length)
	})

	t.Run("trim cutset", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("%%evil%%", "src", schemas.OriginBody)

		res := tr.Trim(v, "%")

		require.Equal(t, "evil", res)
		require.Len(t, tr.Ranges(res), 1)
	})

	t.Run("trim prefix", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("Bearer tok123", "authorization", schemas.OriginHeader)

		res := tr.TrimPrefix(v, "Bearer ")

		require.Equal(t, "tok123", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, 6, rs[0].Length)
	})

	t.Run("absent prefix keeps the value as is", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("tok123", "src", schemas.OriginHeader)

		res := tr.TrimPrefix(v, "Basic ")

		assert.Equal(t, v, res)
		assert.True(t, tr.IsTracked(res))
	})

	t.Run("trim suffix", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("name.html", "src", schemas.OriginPath)

		res := tr.TrimSuffix(v, ".html")

		require.Equal(t, "name", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, 4, rs[0].Length)
	})

	t.Run("fully trimmed value becomes empty and untracked", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("   ", "src", schemas.OriginBody)

		res := tr.TrimSpace(v)

		assert.Empty(t, res)
		assert.False(t, tr.IsTracked(res))
	})

	t.Run("partially tainted input trims to the overlap", func(t *testing.T) {
		tr := newTestTracker(t)
		v := tr.MarkAsSource("  ab12  ", "src", schemas.OriginBody)
		src := tr.Ranges(v)[0].Source
		// Taint only "12" at [4, 6).
		require.NoError(t, tr.SetRanges(v, []TaintRange{{Start: 4, Length: 2, Source: src}}))

		res := tr.TrimSpace(v)

		require.Equal(t, "ab12", res)
		rs := tr.Ranges(res)
		require.Len(t, rs, 1)
		assert.Equal(t, TaintRange{Start: 2, Length: 2, Source: src}, rs[0])
	})
}
