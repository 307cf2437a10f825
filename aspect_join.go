package stain

import "strings"

// Join mirrors strings.Join. Ranges of every element shift to the element's
// offset in the result; a tracked separator contributes a copy of its ranges
// at each occurrence.
func (t *Tracker) Join(parts []string, sep string) string {
	res := strings.Join(parts, sep)
	if len(res) == 0 {
		return res
	}
	tracked := t.IsTracked(sep)
	for i := 0; !tracked && i < len(parts); i++ {
		tracked = t.IsTracked(parts[i])
	}
	if !tracked {
		return res
	}
	t.contain("join", func() error {
		sepRanges := t.rangesOf(sep)
		var out []TaintRange
		off := 0
		for i, p := range parts {
			if i > 0 {
				out = appendShifted(out, sepRanges, off)
				off += len(sep)
			}
			out = appendShifted(out, t.rangesOf(p), off)
			off += len(p)
		}
		if len(out) == 0 {
			return nil
		}
		return register(t, res, out)
	})
	return res
}

// Split mirrors strings.Split and propagates the window of v covered by
// each part onto that part.
func (t *Tracker) Split(v, sep string) []string {
	return t.splitParts("split", v, strings.Split(v, sep))
}

// SplitN mirrors strings.SplitN.
func (t *Tracker) SplitN(v, sep string, n int) []string {
	return t.splitParts("split_n", v, strings.SplitN(v, sep, n))
}

// Fields mirrors strings.Fields.
func (t *Tracker) Fields(v string) []string {
	return t.splitParts("fields", v, strings.Fields(v))
}

// splitParts attributes ranges to substrings produced by the strings split
// family. Those substrings alias v, so each part's offset is recovered from
// its backing pointer rather than by searching for the content.
func (t *Tracker) splitParts(aspect, v string, parts []string) []string {
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(parts) == 0 {
		return parts
	}
	t.contain(aspect, func() error {
		for _, p := range parts {
			if len(p) == 0 {
				continue
			}
			off, ok := offsetWithin(v, p)
			if !ok {
				return errLostAlias
			}
			out := appendClipped(nil, rs, off, off+len(p), 0)
			if len(out) == 0 {
				continue
			}
			if err := register(t, p, out); err != nil {
				return err
			}
		}
		return nil
	})
	return parts
}
