package stain

import (
	"errors"
	"strings"
)

// Slice mirrors v[low:high]. The subslice expression runs first, so
// out-of-range indices panic exactly as they would without tracking;
// containment never masks host-visible errors, only propagation faults.
// Each input range is clipped to the window and rebased; ranges that fall
// outside are dropped, and a clip can never produce a zero-length range.
func (t *Tracker) Slice(v string, low, high int) string {
	res := v[low:high]
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(res) == 0 {
		return res
	}
	t.contain("slice", func() error {
		out := appendClipped(nil, rs, low, high, 0)
		return register(t, res, out)
	})
	return res
}

// SliceBytes mirrors b[low:high]. The result aliases b's backing array;
// its lifetime cleanup consequently fires when the whole array dies, which
// is exactly when the subslice dies too.
func (t *Tracker) SliceBytes(b []byte, low, high int) []byte {
	res := b[low:high:high]
	rs := t.rangesOfBytes(b)
	if len(rs) == 0 || len(res) == 0 {
		return res
	}
	t.contain("slice_bytes", func() error {
		out := appendClipped(nil, rs, low, high, 0)
		return register(t, res, out)
	})
	return res
}

var errLostAlias = errors.New("result does not alias its input")

// trimWindow registers the ranges for a trim-family result, which is always
// a subslice of the input. The window offset is recovered from the result's
// own address instead of re-scanning content, so it is exact even when the
// trimmed content reappears elsewhere in the value.
func (t *Tracker) trimWindow(aspect, v, res string) {
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(res) == 0 {
		return
	}
	t.contain(aspect, func() error {
		off, ok := offsetWithin(v, res)
		if !ok {
			return errLostAlias
		}
		out := appendClipped(nil, rs, off, off+len(res), 0)
		return register(t, res, out)
	})
}

// TrimSpace mirrors strings.TrimSpace.
func (t *Tracker) TrimSpace(v string) string {
	res := strings.TrimSpace(v)
	t.trimWindow("trim_space", v, res)
	return res
}

// Trim mirrors strings.Trim.
func (t *Tracker) Trim(v, cutset string) string {
	res := strings.Trim(v, cutset)
	t.trimWindow("trim", v, res)
	return res
}

// TrimPrefix mirrors strings.TrimPrefix.
func (t *Tracker) TrimPrefix(v, prefix string) string {
	res := strings.TrimPrefix(v, prefix)
	t.trimWindow("trim_prefix", v, res)
	return res
}

// TrimSuffix mirrors strings.TrimSuffix.
func (t *Tracker) TrimSuffix(v, suffix string) string {
	res := strings.TrimSuffix(v, suffix)
	t.trimWindow("trim_suffix", v, res)
	return res
}
