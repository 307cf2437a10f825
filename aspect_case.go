package stain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Case conversions change content, not positions: ranges pass through with
// identical offsets. Unicode case mapping can change a rune's encoded
// width, shifting the bytes behind it; ranges are clamped to the result so
// the store invariant always holds. The positions may then be off by a few
// bytes for such runes. That imprecision is accepted: attribution to the
// source is preserved, which is what detection needs.
func (t *Tracker) passthrough(aspect, v, res string) {
	rs := t.rangesOf(v)
	if len(rs) == 0 || len(res) == 0 {
		return
	}
	t.contain(aspect, func() error {
		return register(t, res, clampRanges(rs, len(res)))
	})
}

// ToUpper mirrors strings.ToUpper.
func (t *Tracker) ToUpper(v string) string {
	res := strings.ToUpper(v)
	t.passthrough("to_upper", v, res)
	return res
}

// ToLower mirrors strings.ToLower.
func (t *Tracker) ToLower(v string) string {
	res := strings.ToLower(v)
	t.passthrough("to_lower", v, res)
	return res
}

// Title mirrors language-neutral title casing. The caser is built per call;
// cases.Caser carries transformer state and is not safe to share.
func (t *Tracker) Title(v string) string {
	res := cases.Title(language.Und).String(v)
	t.passthrough("title", v, res)
	return res
}

// Capitalize uppercases the first rune and lowercases the rest.
func (t *Tracker) Capitalize(v string) string {
	if v == "" {
		return v
	}
	r, size := utf8.DecodeRuneInString(v)
	res := string(unicode.ToUpper(r)) + strings.ToLower(v[size:])
	t.passthrough("capitalize", v, res)
	return res
}
