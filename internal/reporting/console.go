package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/api/schemas"
	"github.com/xkilldash9x/stain/internal/observability"
)

// consoleStyles groups the lipgloss styles used by the console reporter.
// Initialized once per reporter so plain and styled output never mix.
type consoleStyles struct {
	header  lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	subtle  lipgloss.Style
	warning lipgloss.Style
	mark    lipgloss.Style
}

func newConsoleStyles(styled bool) consoleStyles {
	if !styled {
		reset := lipgloss.NewStyle()
		return consoleStyles{
			header:  reset,
			pass:    reset,
			fail:    reset,
			subtle:  reset,
			warning: reset,
			mark:    reset,
		}
	}

	pastelBlue := lipgloss.AdaptiveColor{Light: "#3366cc", Dark: "#8fb3ff"}
	pastelGreen := lipgloss.AdaptiveColor{Light: "#2f7d32", Dark: "#9ada9f"}
	pastelRose := lipgloss.AdaptiveColor{Light: "#ad5d7d", Dark: "#ffb3c9"}
	pastelGold := lipgloss.AdaptiveColor{Light: "#b58b00", Dark: "#ffd666"}
	pastelGray := lipgloss.AdaptiveColor{Light: "#6b6f76", Dark: "#9aa0aa"}
	pastelTeal := lipgloss.AdaptiveColor{Light: "#2b7a78", Dark: "#7ad1c4"}

	return consoleStyles{
		header:  lipgloss.NewStyle().Foreground(pastelBlue).Bold(true),
		pass:    lipgloss.NewStyle().Foreground(pastelGreen),
		fail:    lipgloss.NewStyle().Foreground(pastelRose).Bold(true),
		subtle:  lipgloss.NewStyle().Foreground(pastelGray),
		warning: lipgloss.NewStyle().Foreground(pastelGold).Bold(true),
		mark:    lipgloss.NewStyle().Foreground(pastelTeal),
	}
}

// ConsoleReporter renders trace reports for humans: one block per scenario
// as it completes, then a summary table on Close. It is thread safe.
type ConsoleReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	styles consoleStyles

	mu       sync.Mutex
	rows     [][]string
	passed   int
	failed   int
	findings int
	elapsed  time.Duration
}

// NewConsoleReporter creates a reporter writing human-readable output.
// styled enables color; callers should pass false when the destination is
// not a terminal.
func NewConsoleReporter(writer io.WriteCloser, styled bool) *ConsoleReporter {
	return &ConsoleReporter{
		writer: writer,
		logger: observability.GetLogger().Named("console_reporter"),
		styles: newConsoleStyles(styled),
	}
}

// Write renders one scenario block and records its row for the summary.
func (r *ConsoleReporter) Write(report *schemas.TraceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder

	verdict := r.styles.pass.Render("PASS")
	if !report.Passed {
		verdict = r.styles.fail.Render("FAIL")
	}
	fmt.Fprintf(&b, "%s %s %s\n",
		verdict,
		r.styles.header.Render(report.Scenario),
		r.styles.subtle.Render(fmt.Sprintf("(%d steps in %s)", report.Steps, report.Duration.Round(time.Microsecond))),
	)

	for _, failure := range report.Failures {
		fmt.Fprintf(&b, "  %s %s\n", r.styles.fail.Render("failure:"), failure)
	}
	for _, ev := range report.Evidence {
		fmt.Fprintf(&b, "  %s %s\n", r.styles.subtle.Render("evidence:"), r.styles.mark.Render(ev.Marked))
	}
	for _, finding := range report.Findings {
		fmt.Fprintf(&b, "  %s [%s] %s: %s\n",
			r.styles.warning.Render("finding:"),
			finding.Severity,
			finding.Sink,
			finding.Message,
		)
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write console block: %w", err)
	}

	result := "pass"
	if report.Passed {
		r.passed++
	} else {
		r.failed++
		result = "fail"
	}
	r.findings += len(report.Findings)
	r.elapsed += report.Duration
	r.rows = append(r.rows, []string{
		report.Scenario,
		strconv.Itoa(report.Steps),
		strconv.Itoa(len(report.Findings)),
		result,
		report.Duration.Round(time.Microsecond).String(),
	})
	return nil
}

// Close renders the summary table and closes the writer.
func (r *ConsoleReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var renderErr error
	if len(r.rows) > 0 {
		if _, err := io.WriteString(r.writer, "\n"); err != nil {
			renderErr = err
		} else {
			table := tablewriter.NewTable(r.writer)
			table.Header("Scenario", "Steps", "Findings", "Result", "Duration")
			for _, row := range r.rows {
				table.Append(row)
			}
			renderErr = table.Render()
		}
		if renderErr == nil {
			summary := fmt.Sprintf("%d scenarios: %d passed, %d failed, %d findings in %s",
				len(r.rows), r.passed, r.failed, r.findings, r.elapsed.Round(time.Millisecond))
			if r.failed > 0 {
				summary = r.styles.fail.Render(summary)
			}
			_, renderErr = io.WriteString(r.writer, "\n"+summary+"\n")
		}
	}

	closeErr := r.writer.Close()

	if renderErr != nil {
		r.logger.Error("Failed to render console summary", zap.Error(renderErr))
		return fmt.Errorf("failed to render console summary: %w", renderErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
