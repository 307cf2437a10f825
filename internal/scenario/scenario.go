// Package scenario loads and executes YAML propagation scenarios. A
// scenario marks values as untrusted, pushes them through tracker
// operations and asserts on the provenance the engine reports. It is the
// development harness for the engine, standing in for the instrumentation
// and detection layers a production deployment would provide.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/stain/api/schemas"
)

// Scenario is one scripted propagation flow.
type Scenario struct {
	// Name uniquely identifies this scenario in reports.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Steps is the ordered list of operations to execute.
	Steps []Step `yaml:"steps"`

	// Expect lists assertions evaluated after the last step.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// Step is a single operation. Op selects the operation; the other fields
// are operands and only a subset applies to each op (see validateStep).
// Fields of kind "args" accept literals, or $name to reference a variable
// assigned by an earlier step ($$ escapes a literal dollar sign).
type Step struct {
	// ID names the step for failure attribution. Defaults to "op#index".
	ID string `yaml:"id,omitempty"`

	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Var receives the result. Ops producing several values (split,
	// split_n, fields, regex_split) assign var.0, var.1, and so on.
	Var string `yaml:"var,omitempty"`

	// Value is the literal input of a mark step.
	Value string `yaml:"value,omitempty"`

	// Source and Origin label the mark; Origin must name a known
	// schemas.Origin when present.
	Source string `yaml:"source,omitempty"`
	Origin string `yaml:"origin,omitempty"`

	// Args are the operation inputs, resolved against earlier variables.
	Args []string `yaml:"args,omitempty"`

	// Sep applies to join, split and split_n.
	Sep string `yaml:"sep,omitempty"`

	// Cutset applies to trim; Prefix and Suffix to trim_prefix/trim_suffix.
	Cutset string `yaml:"cutset,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Suffix string `yaml:"suffix,omitempty"`

	// Old and New apply to replace and replace_all.
	Old string `yaml:"old,omitempty"`
	New string `yaml:"new,omitempty"`

	// Format applies to sprintf.
	Format string `yaml:"format,omitempty"`

	// Pattern applies to the regex ops and must compile.
	Pattern string `yaml:"pattern,omitempty"`

	// Count applies to repeat (copies), replace (max substitutions, -1 for
	// all), split_n and regex_split (max parts). nil picks the op default.
	Count *int `yaml:"count,omitempty"`

	// Low and High bound a slice step.
	Low  int `yaml:"low,omitempty"`
	High int `yaml:"high,omitempty"`

	// Sink names the schemas.SinkCategory a sink step declares.
	Sink string `yaml:"sink,omitempty"`
}

// Expectation asserts on one variable after the flow ran. Pointer fields
// distinguish "not asserted" from a zero value.
type Expectation struct {
	// Var names the variable under test.
	Var string `yaml:"var"`

	// Tracked asserts whether the value carries taint ranges.
	Tracked *bool `yaml:"tracked,omitempty"`

	// Value asserts the literal content.
	Value *string `yaml:"value,omitempty"`

	// Marked asserts the default evidence rendering.
	Marked *string `yaml:"marked,omitempty"`

	// Spans asserts the exact range list, in order.
	Spans []SpanExpect `yaml:"spans,omitempty"`

	// Source asserts the source name on every span.
	Source string `yaml:"source,omitempty"`
}

// SpanExpect is one expected taint range.
type SpanExpect struct {
	Start  int `yaml:"start"`
	Length int `yaml:"length"`

	// Source, when set, asserts this span's source name.
	Source string `yaml:"source,omitempty"`
}

// Operation constants for Step.Op.
const (
	OpMark         = "mark"
	OpConcat       = "concat"
	OpRepeat       = "repeat"
	OpSlice        = "slice"
	OpTrimSpace    = "trim_space"
	OpTrim         = "trim"
	OpTrimPrefix   = "trim_prefix"
	OpTrimSuffix   = "trim_suffix"
	OpUpper        = "upper"
	OpLower        = "lower"
	OpTitle        = "title"
	OpCapitalize   = "capitalize"
	OpJoin         = "join"
	OpSplit        = "split"
	OpSplitN       = "split_n"
	OpFields       = "fields"
	OpReplace      = "replace"
	OpReplaceAll   = "replace_all"
	OpSprintf      = "sprintf"
	OpRegexFind    = "regex_find"
	OpRegexReplace = "regex_replace"
	OpRegexSplit   = "regex_split"
	OpSink         = "sink"
	OpRelease      = "release"
)

// label returns the step's display name for failure messages.
func (s *Step) label(index int) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s#%d", s.Op, index)
}

// Load reads and parses a scenario YAML file. It returns an error if the
// file is malformed, contains unknown fields (typos) or fails validation.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name so
// runs are reproducible.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := Load(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// Validate checks required fields and per-op operand shapes.
func Validate(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range sc.Steps {
		if err := validateStep(i, &sc.Steps[i]); err != nil {
			return err
		}
	}
	for i, exp := range sc.Expect {
		if exp.Var == "" {
			return fmt.Errorf("expect[%d]: var is required", i)
		}
		for j, span := range exp.Spans {
			if span.Start < 0 || span.Length <= 0 {
				return fmt.Errorf("expect[%d].spans[%d]: start must be >= 0 and length > 0", i, j)
			}
		}
	}
	return nil
}

// validateStep enforces the operand shape for one step.
func validateStep(i int, s *Step) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("steps[%d] (%s): %s", i, s.Op, fmt.Sprintf(format, args...))
	}

	if s.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", i)
	}

	needVar := true
	switch s.Op {
	case OpSink, OpRelease:
		needVar = false
	}
	if needVar && s.Var == "" {
		return fail("var is required")
	}
	if s.Var != "" && strings.HasPrefix(s.Var, "$") {
		return fail("var must not start with $")
	}

	argsExactly := func(n int) error {
		if len(s.Args) != n {
			return fail("expects exactly %d arg(s), got %d", n, len(s.Args))
		}
		return nil
	}

	switch s.Op {
	case OpMark:
		if len(s.Args) != 0 {
			return fail("takes value, not args")
		}
		if s.Origin != "" {
			if _, ok := schemas.ParseOrigin(s.Origin); !ok {
				return fail("unknown origin %q", s.Origin)
			}
		}
	case OpConcat, OpJoin:
		if len(s.Args) < 1 {
			return fail("expects at least one arg")
		}
	case OpRepeat:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Count == nil || *s.Count < 0 {
			return fail("count is required and must be >= 0")
		}
	case OpSlice:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Low < 0 || s.High < s.Low {
			return fail("bounds must satisfy 0 <= low <= high")
		}
	case OpTrimSpace, OpUpper, OpLower, OpTitle, OpCapitalize, OpFields:
		if err := argsExactly(1); err != nil {
			return err
		}
	case OpTrim:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Cutset == "" {
			return fail("cutset is required")
		}
	case OpTrimPrefix:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Prefix == "" {
			return fail("prefix is required")
		}
	case OpTrimSuffix:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Suffix == "" {
			return fail("suffix is required")
		}
	case OpSplit:
		if err := argsExactly(1); err != nil {
			return err
		}
	case OpSplitN:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Count == nil {
			return fail("count is required")
		}
	case OpReplace:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Old == "" {
			return fail("old is required")
		}
	case OpReplaceAll:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Old == "" {
			return fail("old is required")
		}
	case OpSprintf:
		if s.Format == "" {
			return fail("format is required")
		}
	case OpRegexFind, OpRegexReplace, OpRegexSplit:
		if err := argsExactly(1); err != nil {
			return err
		}
		if s.Pattern == "" {
			return fail("pattern is required")
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fail("pattern does not compile: %v", err)
		}
	case OpSink:
		if err := argsExactly(1); err != nil {
			return err
		}
		if _, ok := schemas.ParseSinkCategory(s.Sink); !ok {
			return fail("unknown sink %q", s.Sink)
		}
	case OpRelease:
		if err := argsExactly(1); err != nil {
			return err
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, s.Op)
	}
	return nil
}
