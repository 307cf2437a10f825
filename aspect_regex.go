package stain

import (
	"regexp"
	"slices"
	"strings"
)

// RegexpFind mirrors (*regexp.Regexp).FindString. The match window of v
// carries its taint onto the returned substring.
func (t *Tracker) RegexpFind(re *regexp.Regexp, v string) string {
	loc := re.FindStringIndex(v)
	if loc == nil {
		return ""
	}
	res := v[loc[0]:loc[1]]
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(res) == 0 {
		return res
	}
	t.contain("regexp_find", func() error {
		out := appendClipped(nil, rs, loc[0], loc[1], 0)
		if len(out) == 0 {
			return nil
		}
		return register(t, res, out)
	})
	return res
}

// RegexpReplaceAll mirrors (*regexp.Regexp).ReplaceAllString. Preserved
// stretches of v shift past each substitution. A tracked replacement
// template carries its ranges to every substitution site only when it is
// literal; $-expansions rearrange bytes, so their output stays untracked.
func (t *Tracker) RegexpReplaceAll(re *regexp.Regexp, v, repl string) string {
	res := re.ReplaceAllString(v, repl)
	rs := t.rangesOf(v)
	rr := t.rangesOf(repl)
	if (len(rs) == 0 && len(rr) == 0) || len(res) == 0 {
		return res
	}
	matches := re.FindAllStringSubmatchIndex(v, -1)
	if len(matches) == 0 {
		// ReplaceAllString copies even when nothing matched; the copy is
		// content-identical, so it inherits v's ranges as they stand.
		if len(rs) > 0 && len(res) == len(v) {
			t.contain("regexp_replace_all", func() error {
				return register(t, res, slices.Clone(rs))
			})
		}
		return res
	}
	literal := !strings.Contains(repl, "$")
	t.contain("regexp_replace_all", func() error {
		var out []TaintRange
		var expanded []byte
		prev, delta := 0, 0
		for _, m := range matches {
			out = appendClipped(out, rs, prev, m[0], prev+delta)
			expanded = re.ExpandString(expanded[:0], repl, v, m)
			if literal {
				out = appendShifted(out, rr, m[0]+delta)
			}
			delta += len(expanded) - (m[1] - m[0])
			prev = m[1]
		}
		out = appendClipped(out, rs, prev, len(v), prev+delta)
		if len(v)+delta != len(res) {
			t.stats.dropped.Add(1)
			return nil
		}
		if len(out) == 0 {
			return nil
		}
		return register(t, res, out)
	})
	return res
}

// RegexpSplit mirrors (*regexp.Regexp).Split. The pieces alias v, so each
// one inherits the window of v it was cut from.
func (t *Tracker) RegexpSplit(re *regexp.Regexp, v string, n int) []string {
	return t.splitParts("regexp_split", v, re.Split(v, n))
}
