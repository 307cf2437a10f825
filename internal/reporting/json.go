package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stain/api/schemas"
	"github.com/xkilldash9x/stain/internal/observability"
)

// JSONReporter buffers trace reports and writes them as a single JSON array
// when Close is called. It is thread safe.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu      sync.Mutex
	reports []*schemas.TraceReport
}

// NewJSONReporter creates a reporter that emits machine-readable output.
// It takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: observability.GetLogger().Named("json_reporter"),
		// Initialize empty (not nil) so an empty run encodes as [].
		reports: []*schemas.TraceReport{},
	}
}

// Write buffers one trace report.
func (r *JSONReporter) Write(report *schemas.TraceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

// Close encodes the buffered reports and closes the writer.
func (r *JSONReporter) Close() error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ") // Pretty print

	encodeErr := encoder.Encode(r.reports)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode trace reports to JSON", zap.Error(encodeErr))
		// Prioritize the encoding error as it indicates corrupted/incomplete output.
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}

	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}

	r.logger.Debug("Wrote JSON trace report",
		zap.Int("scenarios", len(r.reports)),
		zap.Duration("duration_ms", time.Since(startTime)),
	)

	return nil
}
