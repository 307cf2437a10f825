package reporting_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stain/api/schemas"
	"github.com/xkilldash9x/stain/internal/reporting"
)

// sampleReport builds a representative trace report for reporter tests.
func sampleReport(scenario string, passed bool) *schemas.TraceReport {
	report := &schemas.TraceReport{
		RunID:     "run-0001",
		Scenario:  scenario,
		StartedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Duration:  1500 * time.Microsecond,
		Steps:     3,
		Passed:    passed,
		Evidence: []schemas.EvidencePayload{
			{
				Value:  "SELECT * FROM users WHERE name = '1 OR 1=1'",
				Marked: "SELECT * FROM users WHERE name = '<1 OR 1=1>'",
				Spans: []schemas.Span{
					{
						Start:  34,
						Length: 8,
						Hash:   0xfeed,
						Source: schemas.SourceRef{Name: "user.name", Origin: schemas.OriginParameter, Value: "1 OR 1=1"},
					},
				},
			},
		},
		Variables: map[string]string{"q": "SELECT * FROM users WHERE name = '1 OR 1=1'"},
	}
	if !passed {
		report.Failures = []string{`step "exec": expected untracked value, got 1 tainted span`}
		report.Findings = []schemas.TaintFinding{
			{
				ID:         "f-0001",
				RunID:      report.RunID,
				Scenario:   scenario,
				Step:       "exec",
				ObservedAt: report.StartedAt,
				Sink:       schemas.SinkSQLQuery,
				Severity:   schemas.SeverityCritical,
				Message:    "tracked input reached sql_query",
				Evidence:   report.Evidence[0],
			},
		}
	}
	return report
}

func TestJSONReporter_RoundTrip(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewJSONReporter(writer)

	want := []*schemas.TraceReport{
		sampleReport("sql-injection", false),
		sampleReport("upper-passthrough", true),
	}
	for _, report := range want {
		require.NoError(t, reporter.Write(report))
	}
	require.NoError(t, reporter.Close())
	assert.True(t, writer.Closed, "Close must close the underlying writer")

	var got []*schemas.TraceReport
	require.NoError(t, json.Unmarshal(writer.Buffer.Bytes(), &got),
		"Output should be a valid JSON array of trace reports")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Round trip failed. Diff:\n%s", diff)
	}
}

func TestJSONReporter_EmptyRun(t *testing.T) {
	writer := newMockWriter()
	reporter := reporting.NewJSONReporter(writer)

	require.NoError(t, reporter.Close())
	assert.JSONEq(t, "[]", writer.Buffer.String(), "An empty run encodes as an empty array, not null")
}

func TestJSONReporter_WriteError(t *testing.T) {
	writer := newMockWriter()
	writer.FailWrite = true
	reporter := reporting.NewJSONReporter(writer)

	require.NoError(t, reporter.Write(sampleReport("any", true)))

	err := reporter.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON output")
	assert.True(t, writer.Closed, "The writer must be closed even when encoding fails")
}

func TestJSONReporter_CloseError(t *testing.T) {
	writer := newMockWriter()
	writer.FailClose = true
	reporter := reporting.NewJSONReporter(writer)

	err := reporter.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close output writer")
}
