package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/api/schemas"
	"github.com/xkilldash9x/stain/internal/observability"
)

// junitSuiteName is the classname CI systems group the scenarios under.
const junitSuiteName = "stain.trace"

// JUnitReporter renders trace reports as a JUnit XML document, one testcase
// per scenario, so CI systems can surface propagation regressions without
// understanding taint evidence. It is thread safe.
type JUnitReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu      sync.Mutex
	reports []*schemas.TraceReport
}

// NewJUnitReporter creates a reporter that emits JUnit XML on Close.
// It takes ownership of the writer.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{
		writer: writer,
		logger: observability.GetLogger().Named("junit_reporter"),
	}
}

// Write buffers one trace report.
func (r *JUnitReporter) Write(report *schemas.TraceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

// Close builds the XML document from the buffered reports, writes it and
// closes the writer.
func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	var failures int
	var elapsed time.Duration
	for _, report := range r.reports {
		if !report.Passed {
			failures++
		}
		elapsed += report.Duration
	}

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("tests", strconv.Itoa(len(r.reports)))
	suites.CreateAttr("failures", strconv.Itoa(failures))
	suites.CreateAttr("time", formatJUnitSeconds(elapsed))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", junitSuiteName)
	suite.CreateAttr("tests", strconv.Itoa(len(r.reports)))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("time", formatJUnitSeconds(elapsed))

	for _, report := range r.reports {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", report.Scenario)
		tc.CreateAttr("classname", junitSuiteName)
		tc.CreateAttr("time", formatJUnitSeconds(report.Duration))

		if !report.Passed {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("type", "PropagationExpectation")
			failure.CreateAttr("message", strings.Join(report.Failures, "; "))
			failure.SetText(failureDetail(report))
		}
	}

	doc.Indent(2)
	_, writeErr := doc.WriteTo(r.writer)
	// Always attempt to close the writer, regardless of write success.
	closeErr := r.writer.Close()

	if writeErr != nil {
		r.logger.Error("Failed to write JUnit XML", zap.Error(writeErr))
		return fmt.Errorf("failed to write JUnit output: %w", writeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}

	r.logger.Debug("Wrote JUnit trace report",
		zap.Int("scenarios", len(r.reports)),
		zap.Int("failures", failures),
	)
	return nil
}

// failureDetail assembles the evidence block embedded in a failed testcase
// so the rendered markers survive into CI logs.
func failureDetail(report *schemas.TraceReport) string {
	var b strings.Builder
	for _, f := range report.Failures {
		b.WriteString(f)
		b.WriteString("\n")
	}
	for _, ev := range report.Evidence {
		b.WriteString("evidence: ")
		b.WriteString(ev.Marked)
		b.WriteString("\n")
	}
	return b.String()
}

// formatJUnitSeconds renders a duration the way JUnit consumers expect,
// as fractional seconds.
func formatJUnitSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
