package stain

import (
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/api/schemas"
)

// MarkerMode selects how tracked spans are delimited in rendered evidence.
type MarkerMode int

const (
	// MarkPlain wraps each tracked span in single angle brackets.
	MarkPlain MarkerMode = iota
	// MarkSourceName labels each span with its source name.
	MarkSourceName
	// MarkRangeHash labels each span with its range hash in hex.
	MarkRangeHash
	// MarkMapped is MarkRangeHash with hashes rewritten through a
	// RangeMapping; unmapped ranges keep their own hash.
	MarkMapped
)

// Evidence mark tokens. The labelled modes compose them into
// ":+-<label>span<label>-+:" around each tracked span.
const (
	evidenceOpen    = ":+-"
	evidenceClose   = "-+:"
	evidenceLess    = "<"
	evidenceGreater = ">"
)

// RenderEvidence renders v with every tracked span wrapped in angle
// brackets. Untracked values render as themselves. Rendering never fails:
// if the stored ranges are inconsistent with v, the literal value comes
// back and the fallback counter ticks.
func (t *Tracker) RenderEvidence(v string) string {
	s, _ := t.RenderEvidenceMode(v, MarkPlain, nil)
	return s
}

// RenderEvidenceMode renders v in the given marker mode. The mapping is
// consulted only by MarkMapped and may be nil. On inconsistent ranges the
// literal value is returned together with a RenderError.
func (t *Tracker) RenderEvidenceMode(v string, mode MarkerMode, mapping RangeMapping) (string, error) {
	rs := t.rangesOf(v)
	if len(rs) == 0 {
		return v, nil
	}
	if err := validateRanges(rs, len(v)); err != nil {
		t.stats.renderFallbacks.Add(1)
		if t.logger != nil && t.failLog.Allow() {
			t.logger.Warn("evidence render fell back to literal value",
				zap.Int("ranges", len(rs)),
				zap.Error(err))
		}
		return v, newRenderError(err.Error(), len(v))
	}
	return renderMarked(v, rs, mode, mapping), nil
}

// EvidencePayload assembles the report form of v: the raw value, the
// marked rendering and one schema span per range.
func (t *Tracker) EvidencePayload(v string) schemas.EvidencePayload {
	rs := t.rangesOf(v)
	spans := make([]schemas.Span, 0, len(rs))
	for _, r := range rs {
		spans = append(spans, r.Span())
	}
	return schemas.EvidencePayload{
		Value:  v,
		Marked: t.RenderEvidence(v),
		Spans:  spans,
	}
}

// boundary is one mark insertion point. Closes sort before opens at the
// same position so adjacent ranges never appear nested; among closes the
// latest-opened range closes first, and among opens ranges open in stored
// order.
type boundary struct {
	pos  int
	open bool
	idx  int
}

func renderMarked(v string, rs []TaintRange, mode MarkerMode, mapping RangeMapping) string {
	evs := make([]boundary, 0, 2*len(rs))
	for i, r := range rs {
		evs = append(evs, boundary{pos: r.Start, open: true, idx: i})
		evs = append(evs, boundary{pos: r.End(), open: false, idx: i})
	}
	slices.SortStableFunc(evs, func(a, b boundary) int {
		switch {
		case a.pos != b.pos:
			return a.pos - b.pos
		case a.open != b.open:
			if a.open {
				return 1
			}
			return -1
		case a.open:
			return a.idx - b.idx
		default:
			return b.idx - a.idx
		}
	})

	var b strings.Builder
	b.Grow(len(v) + len(rs)*16)
	pos := 0
	for _, e := range evs {
		b.WriteString(v[pos:e.pos])
		pos = e.pos
		open, cl := marksFor(rs[e.idx], mode, mapping)
		if e.open {
			b.WriteString(open)
		} else {
			b.WriteString(cl)
		}
	}
	b.WriteString(v[pos:])
	return b.String()
}

func marksFor(r TaintRange, mode MarkerMode, mapping RangeMapping) (open, cl string) {
	switch mode {
	case MarkSourceName:
		// A range without a named source still gets delimiters, just an
		// empty tag between them.
		tag := ""
		if r.Source != nil && r.Source.Name != "" {
			tag = evidenceLess + r.Source.Name + evidenceGreater
		}
		return evidenceOpen + tag, tag + evidenceClose
	case MarkRangeHash, MarkMapped:
		h := r.Hash()
		if mode == MarkMapped {
			if mapped, status := mapping.Lookup(r.Key()); status == MapStatusMapped {
				h = mapped.Hash()
			}
		}
		tag := evidenceLess + strconv.FormatUint(h, 16) + evidenceGreater
		return evidenceOpen + tag, tag + evidenceClose
	default:
		return evidenceLess, evidenceGreater
	}
}
