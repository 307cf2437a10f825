package stain

import (
	"sync"
	"unicode/utf8"

	"github.com/xkilldash9x/stain/api/schemas"
)

// Source identifies where an untrusted value entered the process. Sources
// are immutable after construction and shared by pointer across every
// TaintRange that cites them; the engine interns them so that content-equal
// sources collapse to a single object. Pointer equality on *Source therefore
// coincides with the (Name, Origin, Value) triple, which is what RangeKey
// relies on.
type Source struct {
	// Name is the caller-supplied label for the entry point, such as the
	// parameter or header name. May be empty.
	Name string

	// Origin is the category of the boundary the value crossed.
	Origin schemas.Origin

	// Value is a bounded snippet of the original value, kept for reports.
	Value string
}

// Ref projects the source into its serializable form.
func (s *Source) Ref() schemas.SourceRef {
	if s == nil {
		return schemas.SourceRef{}
	}
	return schemas.SourceRef{Name: s.Name, Origin: s.Origin, Value: s.Value}
}

type sourceKey struct {
	name   string
	origin schemas.Origin
	value  string
}

// sourceInterner deduplicates Sources by content. The table is bounded:
// once full, new distinct sources are still returned but no longer cached,
// so a hostile flood of unique source labels cannot grow memory without
// limit. Uncached sources lose pointer-dedup, nothing else.
type sourceInterner struct {
	mu  sync.RWMutex
	max int
	m   map[sourceKey]*Source
}

func newSourceInterner(max int) *sourceInterner {
	return &sourceInterner{max: max, m: make(map[sourceKey]*Source)}
}

func (si *sourceInterner) intern(name string, origin schemas.Origin, value string) *Source {
	key := sourceKey{name: name, origin: origin, value: value}

	si.mu.RLock()
	s := si.m[key]
	si.mu.RUnlock()
	if s != nil {
		return s
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	if s := si.m[key]; s != nil {
		return s
	}
	s = &Source{Name: name, Origin: origin, Value: value}
	if si.max <= 0 || len(si.m) < si.max {
		si.m[key] = s
	}
	return s
}

func (si *sourceInterner) reset() {
	si.mu.Lock()
	clear(si.m)
	si.mu.Unlock()
}

// truncateSnippet bounds a captured source value for reporting. The cut
// lands on a rune boundary and an ellipsis marks dropped content, so the
// stored form is at most max bytes plus the marker.
func truncateSnippet(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut] + "…"
}
