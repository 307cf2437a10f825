package stain

import (
	"errors"
	"fmt"
)

// The engine distinguishes three failure categories. All of them are
// contained at the aspect boundary: they never escape to the host program
// and are observable only through logs and Stats counters. The types are
// exported so tests and instrumentation shims can assert on what went wrong.

// InvalidRangeError reports malformed range input detected at the store
// boundary: an offset outside the value, a non-positive length, or an
// unsorted sequence. It always indicates a programming error in an aspect,
// never bad host input, which is why the store validates instead of
// trusting its callers.
type InvalidRangeError struct {
	// Reason describes which validation failed.
	Reason string

	// Start and Length identify the offending range.
	Start  int
	Length int

	// ValueLen is the length of the value the range was registered against.
	ValueLen int
}

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid taint range [%d,+%d) over value of length %d: %s",
		e.Start, e.Length, e.ValueLen, e.Reason)
}

// IsInvalidRange reports whether err is, or wraps, an InvalidRangeError.
func IsInvalidRange(err error) bool {
	var ire *InvalidRangeError
	return errors.As(err, &ire)
}

func newInvalidRange(reason string, start, length, valueLen int) *InvalidRangeError {
	return &InvalidRangeError{Reason: reason, Start: start, Length: length, ValueLen: valueLen}
}

// PropagationFailure reports any other internal fault during an aspect:
// missing source data, arithmetic that escaped its bounds, or a recovered
// panic. The wrapped error carries the detail.
type PropagationFailure struct {
	// Aspect names the propagation entry point that failed.
	Aspect string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *PropagationFailure) Error() string {
	return fmt.Sprintf("taint propagation failed in aspect %q: %v", e.Aspect, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *PropagationFailure) Unwrap() error { return e.Err }

// IsPropagationFailure reports whether err is, or wraps, a PropagationFailure.
func IsPropagationFailure(err error) bool {
	var pf *PropagationFailure
	return errors.As(err, &pf)
}

func newPropagationFailure(aspect string, err error) *PropagationFailure {
	return &PropagationFailure{Aspect: aspect, Err: err}
}

// RenderError reports an inconsistent range set discovered while rendering
// evidence, typically a range extending past the value's current length
// after the value was mutated outside the tracked operations. Rendering
// falls back to the literal value when this occurs.
type RenderError struct {
	// Reason describes the inconsistency.
	Reason string

	// ValueLen is the current length of the value being rendered.
	ValueLen int
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("evidence render failed for value of length %d: %s", e.ValueLen, e.Reason)
}

// IsRenderError reports whether err is, or wraps, a RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

func newRenderError(reason string, valueLen int) *RenderError {
	return &RenderError{Reason: reason, ValueLen: valueLen}
}
