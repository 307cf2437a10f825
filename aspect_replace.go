package stain

import (
	"strings"
	"unicode/utf8"
)

// Replace mirrors strings.Replace. Ranges covering preserved bytes of v
// shift past the substitutions; a range overlapping a replaced match is
// clipped to the bytes that survive around it. A tracked replacement string
// contributes a copy of its ranges at every substitution site.
func (t *Tracker) Replace(v, old, new string, n int) string {
	res := strings.Replace(v, old, new, n)
	rs := t.rangesOf(v)
	nr := t.rangesOf(new)
	if (len(rs) == 0 && len(nr) == 0) || len(res) == 0 {
		return res
	}
	matches := matchOffsets(v, old, n)
	if len(matches) == 0 {
		return res
	}
	t.contain("replace", func() error {
		out := make([]TaintRange, 0, len(rs)+len(nr)*len(matches))
		prev, delta := 0, 0
		for _, m := range matches {
			out = appendClipped(out, rs, prev, m, prev+delta)
			out = appendShifted(out, nr, m+delta)
			delta += len(new) - len(old)
			prev = m + len(old)
		}
		out = appendClipped(out, rs, prev, len(v), prev+delta)
		if len(out) == 0 {
			return nil
		}
		return register(t, res, out)
	})
	return res
}

// ReplaceAll mirrors strings.ReplaceAll.
func (t *Tracker) ReplaceAll(v, old, new string) string {
	return t.Replace(v, old, new, -1)
}

// matchOffsets returns the byte offsets strings.Replace substitutes at,
// capped at n when n >= 0. An empty old matches before the first rune and
// after every rune, exactly as strings.Replace inserts.
func matchOffsets(s, old string, n int) []int {
	if n == 0 {
		return nil
	}
	var offs []int
	if old == "" {
		offs = append(offs, 0)
		for i := 0; i < len(s) && (n < 0 || len(offs) < n); {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			offs = append(offs, i)
		}
		return offs
	}
	for i := 0; n < 0 || len(offs) < n; {
		j := strings.Index(s[i:], old)
		if j < 0 {
			break
		}
		offs = append(offs, i+j)
		i += j + len(old)
	}
	return offs
}
