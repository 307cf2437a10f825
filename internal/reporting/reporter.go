package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/term"

	"github.com/xkilldash9x/stain/api/schemas"
)

// Reporter defines the interface for writing trace results to an output.
type Reporter interface {
	// Write processes a single scenario trace report.
	Write(report *schemas.TraceReport) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// brotliWriteCloser compresses everything written through it. Close flushes
// the compressed stream before closing the underlying file.
type brotliWriteCloser struct {
	*brotli.Writer
	file io.Closer
}

func (bwc *brotliWriteCloser) Close() error {
	err := bwc.Writer.Close()
	return errors.Join(err, bwc.file.Close())
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output. A file path ending in
// .br is transparently brotli-compressed. noColor forces plain console output
// regardless of terminal detection.
func New(format, outputPath string, noColor bool) (Reporter, error) {
	var writer io.WriteCloser // Use interface type
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		if strings.EqualFold(filepath.Ext(outputPath), ".br") {
			writer = &brotliWriteCloser{
				Writer: brotli.NewWriterLevel(f, brotli.DefaultCompression),
				file:   f,
			}
		} else {
			writer = f
		}
	}

	// Helper function to close the writer if it's a file and an error occurs.
	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "console":
		styled := !noColor &&
			os.Getenv("NO_COLOR") == "" &&
			isStdOut &&
			term.IsTerminal(int(os.Stdout.Fd()))
		return NewConsoleReporter(writer, styled), nil
	case "json":
		return NewJSONReporter(writer), nil
	case "junit":
		return NewJUnitReporter(writer), nil
	default:
		cleanup() // Close the file handle
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
