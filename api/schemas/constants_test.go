package schemas_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/stain/api/schemas"
)

// TestConstants verifies that all defined constants hold their expected
// string values. The tokens appear verbatim in scenario files and reports,
// so accidental changes are breaking.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{} // Use interface{} to handle various constant types.
		expected string
	}{
		// Origins
		{"OriginParameter", schemas.OriginParameter, "parameter"},
		{"OriginParamName", schemas.OriginParamName, "param_name"},
		{"OriginQueryParam", schemas.OriginQueryParam, "query_param"},
		{"OriginHeader", schemas.OriginHeader, "header"},
		{"OriginHeaderName", schemas.OriginHeaderName, "header_name"},
		{"OriginCookie", schemas.OriginCookie, "cookie"},
		{"OriginCookieName", schemas.OriginCookieName, "cookie_name"},
		{"OriginBody", schemas.OriginBody, "body"},
		{"OriginPath", schemas.OriginPath, "path"},
		{"OriginURI", schemas.OriginURI, "uri"},
		{"OriginEnv", schemas.OriginEnv, "env"},
		{"OriginDatabase", schemas.OriginDatabase, "database"},
		{"OriginUnknown", schemas.OriginUnknown, "unknown"},

		// Severities
		{"SeverityCritical", schemas.SeverityCritical, "critical"},
		{"SeverityHigh", schemas.SeverityHigh, "high"},
		{"SeverityMedium", schemas.SeverityMedium, "medium"},
		{"SeverityLow", schemas.SeverityLow, "low"},
		{"SeverityInfo", schemas.SeverityInfo, "info"},

		// Sink categories
		{"SinkSQLQuery", schemas.SinkSQLQuery, "sql_query"},
		{"SinkOSCommand", schemas.SinkOSCommand, "os_command"},
		{"SinkHTMLOutput", schemas.SinkHTMLOutput, "html_output"},
		{"SinkHTTPHeader", schemas.SinkHTTPHeader, "http_header"},
		{"SinkRedirectURL", schemas.SinkRedirectURL, "redirect_url"},
		{"SinkOutboundURL", schemas.SinkOutboundURL, "outbound_url"},
		{"SinkFilePath", schemas.SinkFilePath, "file_path"},
		{"SinkTemplate", schemas.SinkTemplate, "template"},
		{"SinkEval", schemas.SinkEval, "eval"},
		{"SinkLDAPFilter", schemas.SinkLDAPFilter, "ldap_filter"},
		{"SinkXPathQuery", schemas.SinkXPathQuery, "xpath_query"},
		{"SinkLogEntry", schemas.SinkLogEntry, "log_entry"},
		{"SinkGeneric", schemas.SinkGeneric, "generic"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var actual string
			if stringer, ok := tt.constant.(fmt.Stringer); ok {
				actual = stringer.String()
			} else {
				actual = fmt.Sprintf("%v", tt.constant)
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestParseOrigin(t *testing.T) {
	t.Parallel()

	o, ok := schemas.ParseOrigin("cookie")
	assert.True(t, ok)
	assert.Equal(t, schemas.OriginCookie, o)

	_, ok = schemas.ParseOrigin("COOKIE")
	assert.False(t, ok, "parsing is case sensitive")

	_, ok = schemas.ParseOrigin("carrier_pigeon")
	assert.False(t, ok)
}

func TestParseSinkCategory(t *testing.T) {
	t.Parallel()

	s, ok := schemas.ParseSinkCategory("sql_query")
	assert.True(t, ok)
	assert.Equal(t, schemas.SinkSQLQuery, s)

	_, ok = schemas.ParseSinkCategory("sqlquery")
	assert.False(t, ok)

	_, ok = schemas.ParseSinkCategory("")
	assert.False(t, ok)
}

func TestDefaultSeverity(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		sink     schemas.SinkCategory
		expected schemas.Severity
	}{
		{schemas.SinkSQLQuery, schemas.SeverityCritical},
		{schemas.SinkOSCommand, schemas.SeverityCritical},
		{schemas.SinkEval, schemas.SeverityCritical},
		{schemas.SinkTemplate, schemas.SeverityCritical},
		{schemas.SinkHTMLOutput, schemas.SeverityHigh},
		{schemas.SinkRedirectURL, schemas.SeverityHigh},
		{schemas.SinkOutboundURL, schemas.SeverityHigh},
		{schemas.SinkFilePath, schemas.SeverityHigh},
		{schemas.SinkLDAPFilter, schemas.SeverityHigh},
		{schemas.SinkXPathQuery, schemas.SeverityHigh},
		{schemas.SinkHTTPHeader, schemas.SeverityMedium},
		{schemas.SinkLogEntry, schemas.SeverityLow},
		{schemas.SinkGeneric, schemas.SeverityInfo},
		{schemas.SinkCategory("made_up"), schemas.SeverityInfo},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(string(tt.sink), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.sink.DefaultSeverity())
		})
	}
}
