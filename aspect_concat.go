package stain

import (
	"strings"
)

// Concat mirrors a + b. Ranges from a keep their offsets; ranges from b
// shift by len(a). Adjacent ranges with the same source are deliberately
// NOT merged: each range marks one origin event, and merging would erase
// the evidence boundary between them. Coalescing is a rendering concern,
// never a storage one.
func (t *Tracker) Concat(a, b string) string {
	res := a + b
	ra, rb := t.rangesOf(a), t.rangesOf(b)
	if len(ra) == 0 && len(rb) == 0 {
		return res
	}
	t.contain("concat", func() error {
		out := make([]TaintRange, 0, len(ra)+len(rb))
		out = append(out, ra...)
		out = appendShifted(out, rb, len(a))
		return register(t, res, out)
	})
	return res
}

// ConcatAll mirrors concatenating parts in order, equivalent to folding
// Concat but with a single registration for the final value.
func (t *Tracker) ConcatAll(parts ...string) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p)
	}
	res := sb.String()

	tracked := false
	for _, p := range parts {
		if len(t.rangesOf(p)) > 0 {
			tracked = true
			break
		}
	}
	if !tracked {
		return res
	}
	t.contain("concat_all", func() error {
		var out []TaintRange
		off := 0
		for _, p := range parts {
			out = appendShifted(out, t.rangesOf(p), off)
			off += len(p)
		}
		return register(t, res, out)
	})
	return res
}

// ConcatBytes mirrors appending b after a into a freshly allocated slice.
// The result never aliases either input, so tracking it cannot be confused
// by later in-place writes to a or b.
func (t *Tracker) ConcatBytes(a, b []byte) []byte {
	res := make([]byte, 0, len(a)+len(b))
	res = append(res, a...)
	res = append(res, b...)

	ra, rb := t.rangesOfBytes(a), t.rangesOfBytes(b)
	if len(ra) == 0 && len(rb) == 0 {
		return res
	}
	t.contain("concat_bytes", func() error {
		out := make([]TaintRange, 0, len(ra)+len(rb))
		out = append(out, ra...)
		out = appendShifted(out, rb, len(a))
		return register(t, res, out)
	})
	return res
}

// Repeat mirrors strings.Repeat: v's ranges are replicated at every copy,
// shifted by the copy's offset.
func (t *Tracker) Repeat(v string, count int) string {
	res := strings.Repeat(v, count)
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(res) == 0 {
		return res
	}
	t.contain("repeat", func() error {
		out := make([]TaintRange, 0, len(rs)*count)
		for i := 0; i < count; i++ {
			out = appendShifted(out, rs, i*len(v))
		}
		return register(t, res, out)
	})
	return res
}
