package stain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyOf(t *testing.T) {
	t.Run("equal content, distinct allocations, distinct keys", func(t *testing.T) {
		a := strings.Repeat("xy", 4)
		b := strings.Repeat("xy", 4)
		require.Equal(t, a, b)

		ka, ok := keyOf(a)
		require.True(t, ok)
		kb, ok := keyOf(b)
		require.True(t, ok)
		assert.NotEqual(t, ka, kb)
	})

	t.Run("value and prefix differ by length", func(t *testing.T) {
		v := strings.Repeat("abc", 4)
		kv, ok := keyOf(v)
		require.True(t, ok)
		kp, ok := keyOf(v[:6])
		require.True(t, ok)
		assert.Equal(t, kv.data, kp.data, "prefix shares the base pointer")
		assert.NotEqual(t, kv, kp, "length disambiguates them")
	})

	t.Run("string and bytes share the key shape", func(t *testing.T) {
		b := []byte("shape")
		kb, ok := keyOf(b)
		require.True(t, ok)
		assert.Equal(t, len(b), kb.len)
	})

	t.Run("empty values have no identity", func(t *testing.T) {
		_, ok := keyOf("")
		assert.False(t, ok)
		_, ok = keyOf([]byte(nil))
		assert.False(t, ok)
		assert.Nil(t, bytePointerOf(""))
	})
}

func TestOffsetWithin(t *testing.T) {
	v := strings.Repeat("abcdef", 2)

	t.Run("interior subslice", func(t *testing.T) {
		off, ok := offsetWithin(v, v[3:9])
		require.True(t, ok)
		assert.Equal(t, 3, off)
	})

	t.Run("full value", func(t *testing.T) {
		off, ok := offsetWithin(v, v)
		require.True(t, ok)
		assert.Zero(t, off)
	})

	t.Run("suffix", func(t *testing.T) {
		off, ok := offsetWithin(v, v[len(v)-2:])
		require.True(t, ok)
		assert.Equal(t, len(v)-2, off)
	})

	t.Run("non-aliasing copy", func(t *testing.T) {
		other := strings.Clone(v)
		_, ok := offsetWithin(v, other[3:9])
		assert.False(t, ok)
	})

	t.Run("empty sub", func(t *testing.T) {
		_, ok := offsetWithin(v, "")
		assert.False(t, ok)
	})

	t.Run("aliasing split results", func(t *testing.T) {
		csv := strings.Repeat("a,bb,ccc", 1) + "," // force a runtime allocation
		parts := strings.Split(csv, ",")
		wantOff := 0
		for _, p := range parts {
			if p == "" {
				continue
			}
			off, ok := offsetWithin(csv, p)
			require.True(t, ok, "split results alias their input")
			assert.Equal(t, wantOff, off)
			wantOff += len(p) + 1
		}
	})
}
