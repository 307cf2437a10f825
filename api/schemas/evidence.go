package schemas

import "time"

// -- Evidence Payload Schemas --
//
// These types are the serialization contract between the propagation engine
// and external reporting layers. The engine itself never performs network or
// file I/O with them; it only guarantees the shapes stay stable.

// SourceRef is the serializable projection of an engine Source.
type SourceRef struct {
	Name   string `json:"name"`            // Caller-supplied label, may be empty.
	Origin Origin `json:"origin"`          // Category of the entry boundary.
	Value  string `json:"value,omitempty"` // Bounded snippet of the original value, possibly truncated.
}

// Span is the serializable projection of a single taint range.
type Span struct {
	Start  int       `json:"start"`
	Length int       `json:"length"`
	Hash   uint64    `json:"hash"` // Stable identity hash, for cross-report correlation.
	Source SourceRef `json:"source"`
}

// EvidencePayload carries one tracked value together with its marked-up
// rendering and the spans that produced the markers.
type EvidencePayload struct {
	Value  string `json:"value"`  // Literal content at render time.
	Marked string `json:"marked"` // Marker-interleaved rendering of Value.
	Spans  []Span `json:"spans"`
}

// TraceReport is the envelope emitted by the scenario runner for one
// executed scenario: which steps ran, what evidence each tracked variable
// produced, and whether the expectations held.
type TraceReport struct {
	RunID     string            `json:"run_id"`
	Scenario  string            `json:"scenario"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`
	Steps     int               `json:"steps"`
	Passed    bool              `json:"passed"`
	Failures  []string          `json:"failures,omitempty"`
	Evidence  []EvidencePayload `json:"evidence,omitempty"`
	Findings  []TaintFinding    `json:"findings,omitempty"`  // Tracked values that reached declared sinks.
	Variables map[string]string `json:"variables,omitempty"` // Final literal values by name.
}
