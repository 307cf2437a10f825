package schemas

// -- Taint Origin Schemas --

// Origin identifies the category of the boundary where an untrusted value
// entered the process. It is recorded on every Source and travels with each
// taint range, so detection and reporting layers can attribute a tainted
// span without consulting the instrumentation layer again.
type Origin string

// Constants for the supported origin categories. The values are lowercase
// snake_case because they appear verbatim in scenario files, log fields and
// serialized evidence payloads.
const (
	OriginParameter  Origin = "parameter"   // Request parameter value (form or matrix).
	OriginParamName  Origin = "param_name"  // Request parameter name.
	OriginQueryParam Origin = "query_param" // URL query string parameter.
	OriginHeader     Origin = "header"      // HTTP header value.
	OriginHeaderName Origin = "header_name" // HTTP header name.
	OriginCookie     Origin = "cookie"      // Cookie value.
	OriginCookieName Origin = "cookie_name" // Cookie name.
	OriginBody       Origin = "body"        // Request body content.
	OriginPath       Origin = "path"        // URL path segment.
	OriginURI        Origin = "uri"         // Full request URI.
	OriginEnv        Origin = "env"         // Process environment variable.
	OriginDatabase   Origin = "database"    // Value read back from a datastore.
	OriginUnknown    Origin = "unknown"     // Origin not classified by the caller.
)

// knownOrigins indexes every declared Origin for ParseOrigin lookups.
var knownOrigins = map[string]Origin{
	string(OriginParameter):  OriginParameter,
	string(OriginParamName):  OriginParamName,
	string(OriginQueryParam): OriginQueryParam,
	string(OriginHeader):     OriginHeader,
	string(OriginHeaderName): OriginHeaderName,
	string(OriginCookie):     OriginCookie,
	string(OriginCookieName): OriginCookieName,
	string(OriginBody):       OriginBody,
	string(OriginPath):       OriginPath,
	string(OriginURI):        OriginURI,
	string(OriginEnv):        OriginEnv,
	string(OriginDatabase):   OriginDatabase,
	string(OriginUnknown):    OriginUnknown,
}

// ParseOrigin maps a raw token (from a scenario file or CLI flag) to a
// declared Origin. The second return reports whether the token named a
// known category; callers that must not fail should fall back to
// OriginUnknown when it is false.
func ParseOrigin(raw string) (Origin, bool) {
	o, ok := knownOrigins[raw]
	return o, ok
}

// String returns the wire form of the origin.
func (o Origin) String() string { return string(o) }
