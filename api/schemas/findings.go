package schemas

import "time"

// -- Finding Schemas --

// Severity ranks how dangerous a confirmed taint flow is, from critical to
// informational. The values are lowercase to align with scenario files and
// serialized report output.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical" // Untrusted input reached a code or query execution sink.
	SeverityHigh     Severity = "high"     // Untrusted input reached a content or resource sink.
	SeverityMedium   Severity = "medium"   // Untrusted input reached a metadata sink.
	SeverityLow      Severity = "low"      // Flow is suspicious but rarely exploitable alone.
	SeverityInfo     Severity = "info"     // Informational observation.
)

// SinkCategory names the class of security-sensitive operation a tracked
// value arrived at. The propagation engine never interprets these values;
// they are the shared vocabulary between the layer that declares sinks
// (instrumentation, or the scenario runner standing in for it) and the
// detection rules that consume sink reports.
type SinkCategory string

// Constants for the supported server-side sink categories. Lowercase
// snake_case for the same reason as Origin: the tokens appear verbatim in
// scenario files and reports.
const (
	SinkSQLQuery    SinkCategory = "sql_query"    // Query text handed to a database driver.
	SinkOSCommand   SinkCategory = "os_command"   // Shell command line or exec argument.
	SinkHTMLOutput  SinkCategory = "html_output"  // Markup written into a response body.
	SinkHTTPHeader  SinkCategory = "http_header"  // Response header value.
	SinkRedirectURL SinkCategory = "redirect_url" // Target of an HTTP redirect.
	SinkOutboundURL SinkCategory = "outbound_url" // URL the server itself fetches.
	SinkFilePath    SinkCategory = "file_path"    // Filesystem path passed to open/remove/stat.
	SinkTemplate    SinkCategory = "template"     // Template source or expression text.
	SinkEval        SinkCategory = "eval"         // Dynamically evaluated code.
	SinkLDAPFilter  SinkCategory = "ldap_filter"  // LDAP search filter.
	SinkXPathQuery  SinkCategory = "xpath_query"  // XPath expression.
	SinkLogEntry    SinkCategory = "log_entry"    // Line written to an application log.
	SinkGeneric     SinkCategory = "generic"      // Uncategorized sink.
)

// knownSinks indexes every declared SinkCategory for ParseSinkCategory.
var knownSinks = map[string]SinkCategory{
	string(SinkSQLQuery):    SinkSQLQuery,
	string(SinkOSCommand):   SinkOSCommand,
	string(SinkHTMLOutput):  SinkHTMLOutput,
	string(SinkHTTPHeader):  SinkHTTPHeader,
	string(SinkRedirectURL): SinkRedirectURL,
	string(SinkOutboundURL): SinkOutboundURL,
	string(SinkFilePath):    SinkFilePath,
	string(SinkTemplate):    SinkTemplate,
	string(SinkEval):        SinkEval,
	string(SinkLDAPFilter):  SinkLDAPFilter,
	string(SinkXPathQuery):  SinkXPathQuery,
	string(SinkLogEntry):    SinkLogEntry,
	string(SinkGeneric):     SinkGeneric,
}

// ParseSinkCategory maps a raw token from a scenario file to a declared
// SinkCategory. The second return reports whether the token named a known
// category.
func ParseSinkCategory(raw string) (SinkCategory, bool) {
	s, ok := knownSinks[raw]
	return s, ok
}

// String returns the wire form of the sink category.
func (s SinkCategory) String() string { return string(s) }

// DefaultSeverity returns the severity conventionally assigned to a taint
// flow reaching the given sink when the caller supplies no override.
func (s SinkCategory) DefaultSeverity() Severity {
	switch s {
	case SinkSQLQuery, SinkOSCommand, SinkEval, SinkTemplate:
		return SeverityCritical
	case SinkHTMLOutput, SinkRedirectURL, SinkOutboundURL, SinkFilePath,
		SinkLDAPFilter, SinkXPathQuery:
		return SeverityHigh
	case SinkHTTPHeader:
		return SeverityMedium
	case SinkLogEntry:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// TaintFinding records one observation of tracked data arriving at a
// declared sink. The engine contributes the Evidence; the surrounding
// layer fills in attribution and classification.
type TaintFinding struct {
	ID    string `json:"id"`     // Unique identifier for the finding.
	RunID string `json:"run_id"` // The run that produced this finding.

	// Scenario and Step attribute the finding when it was produced by the
	// scenario runner rather than live instrumentation.
	Scenario string `json:"scenario,omitempty"`
	Step     string `json:"step,omitempty"`

	// ObservedAt is the timestamp when the tracked value reached the sink.
	ObservedAt time.Time `json:"observed_at"`

	Sink     SinkCategory `json:"sink"`     // Category of the sink that was reached.
	Severity Severity     `json:"severity"` // Assigned severity of the flow.

	// Message is a short human-readable description of the flow.
	Message string `json:"message,omitempty"`

	// Evidence is the marked-up rendering of the value that arrived at the
	// sink, span by span.
	Evidence EvidencePayload `json:"evidence"`
}
