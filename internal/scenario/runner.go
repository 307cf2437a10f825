package scenario

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/stain"
	"github.com/xkilldash9x/stain/api/schemas"
)

// Options tunes a Runner.
type Options struct {
	// Engine configures the fresh tracker each scenario runs against.
	Engine stain.Config

	// Concurrency caps scenarios in flight; values below 1 mean 1.
	Concurrency int

	// FailFast cancels the remaining scenarios after the first failure.
	FailFast bool

	// Timeout bounds a single scenario. Zero means unbounded.
	Timeout time.Duration
}

// Runner executes scenarios. Each scenario gets its own Tracker so flows
// cannot observe one another's provenance.
type Runner struct {
	opts   Options
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger disables runner diagnostics.
func NewRunner(opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{opts: opts, logger: logger}
}

// RunAll executes the scenarios with bounded parallelism and returns their
// reports in input order. Under FailFast the error reports the first failed
// scenario and later reports may be missing; the returned slice holds every
// scenario that actually ran.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*schemas.TraceReport, error) {
	slots := make([]*schemas.TraceReport, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, sc := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report := r.Run(ctx, sc)
			slots[i] = report
			if r.opts.FailFast && !report.Passed {
				return fmt.Errorf("scenario %s failed", sc.Name)
			}
			return nil
		})
	}
	err := g.Wait()

	reports := make([]*schemas.TraceReport, 0, len(slots))
	for _, report := range slots {
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports, err
}

// Run executes one scenario against a fresh tracker and always returns a
// report; failures are recorded in it rather than returned.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *schemas.TraceReport {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	report := &schemas.TraceReport{
		RunID:     uuid.NewString(),
		Scenario:  sc.Name,
		StartedAt: started,
		Steps:     len(sc.Steps),
	}

	logger := r.logger.With(zap.String("scenario", sc.Name))
	exec := &executor{
		tracker: stain.New(r.opts.Engine, logger.Named("engine")),
		vars:    make(map[string]string),
	}

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures,
				fmt.Sprintf("step %q: aborted: %v", step.label(i), err))
			break
		}
		if err := exec.execute(step, i, report); err != nil {
			report.Failures = append(report.Failures,
				fmt.Sprintf("step %q: %v", step.label(i), err))
			break
		}
	}

	// Expectations run even after a step failure so the report shows the
	// whole picture.
	for i := range sc.Expect {
		exec.check(&sc.Expect[i], report)
	}

	// Attach the evidence of every tracked expectation variable.
	seen := make(map[string]bool, len(sc.Expect))
	for _, exp := range sc.Expect {
		if seen[exp.Var] {
			continue
		}
		seen[exp.Var] = true
		if v, ok := exec.vars[exp.Var]; ok && exec.tracker.IsTracked(v) {
			report.Evidence = append(report.Evidence, exec.tracker.EvidencePayload(v))
		}
	}

	report.Variables = exec.vars
	report.Duration = time.Since(started)
	report.Passed = len(report.Failures) == 0

	logger.Debug("Scenario finished",
		zap.Bool("passed", report.Passed),
		zap.Int("failures", len(report.Failures)),
		zap.Int("findings", len(report.Findings)),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// executor holds the mutable state of one scenario run.
type executor struct {
	tracker *stain.Tracker
	vars    map[string]string
}

// resolve maps one step argument to its value: $name reads a variable,
// $$ escapes a literal leading dollar, anything else is a literal.
func (e *executor) resolve(arg string) (string, error) {
	if strings.HasPrefix(arg, "$$") {
		return arg[1:], nil
	}
	if strings.HasPrefix(arg, "$") {
		name := arg[1:]
		v, ok := e.vars[name]
		if !ok {
			return "", fmt.Errorf("undefined variable $%s", name)
		}
		return v, nil
	}
	return arg, nil
}

func (e *executor) resolveAll(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		v, err := e.resolve(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *executor) assign(name, value string) {
	e.vars[name] = value
}

// assignParts stores a multi-value result as name.0, name.1, ...
func (e *executor) assignParts(name string, parts []string) {
	for i, part := range parts {
		e.vars[fmt.Sprintf("%s.%d", name, i)] = part
	}
}

// execute runs one step. Host operations keep their ordinary failure modes
// (slicing out of range panics, exactly as it would uninstrumented); the
// harness converts such panics into step failures instead of crashing the
// whole run.
func (e *executor) execute(step *Step, index int, report *schemas.TraceReport) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panicked: %v", rec)
		}
	}()

	switch step.Op {
	case OpMark:
		origin := schemas.OriginUnknown
		if step.Origin != "" {
			origin, _ = schemas.ParseOrigin(step.Origin) // validated at load time
		}
		e.assign(step.Var, e.tracker.MarkAsSource(step.Value, step.Source, origin))

	case OpConcat:
		parts, err := e.resolveAll(step.Args)
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.ConcatAll(parts...))

	case OpRepeat:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Repeat(v, *step.Count))

	case OpSlice:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Slice(v, step.Low, step.High))

	case OpTrimSpace:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.TrimSpace(v))

	case OpTrim:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Trim(v, step.Cutset))

	case OpTrimPrefix:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.TrimPrefix(v, step.Prefix))

	case OpTrimSuffix:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.TrimSuffix(v, step.Suffix))

	case OpUpper:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.ToUpper(v))

	case OpLower:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.ToLower(v))

	case OpTitle:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Title(v))

	case OpCapitalize:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Capitalize(v))

	case OpJoin:
		parts, err := e.resolveAll(step.Args)
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.Join(parts, step.Sep))

	case OpSplit:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assignParts(step.Var, e.tracker.Split(v, step.Sep))

	case OpSplitN:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assignParts(step.Var, e.tracker.SplitN(v, step.Sep, *step.Count))

	case OpFields:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assignParts(step.Var, e.tracker.Fields(v))

	case OpReplace:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		n := -1
		if step.Count != nil {
			n = *step.Count
		}
		e.assign(step.Var, e.tracker.Replace(v, step.Old, step.New, n))

	case OpReplaceAll:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.ReplaceAll(v, step.Old, step.New))

	case OpSprintf:
		args, err := e.resolveAll(step.Args)
		if err != nil {
			return err
		}
		operands := make([]any, len(args))
		for i, a := range args {
			operands[i] = a
		}
		e.assign(step.Var, e.tracker.Sprintf(step.Format, operands...))

	case OpRegexFind:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.RegexpFind(regexp.MustCompile(step.Pattern), v))

	case OpRegexReplace:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.assign(step.Var, e.tracker.RegexpReplaceAll(regexp.MustCompile(step.Pattern), v, step.New))

	case OpRegexSplit:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		n := -1
		if step.Count != nil {
			n = *step.Count
		}
		e.assignParts(step.Var, e.tracker.RegexpSplit(regexp.MustCompile(step.Pattern), v, n))

	case OpSink:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		sink, _ := schemas.ParseSinkCategory(step.Sink) // validated at load time
		if e.tracker.IsTracked(v) {
			report.Findings = append(report.Findings, schemas.TaintFinding{
				ID:         uuid.NewString(),
				RunID:      report.RunID,
				Scenario:   report.Scenario,
				Step:       step.label(index),
				ObservedAt: time.Now(),
				Sink:       sink,
				Severity:   sink.DefaultSeverity(),
				Message:    fmt.Sprintf("tracked value reached %s", sink),
				Evidence:   e.tracker.EvidencePayload(v),
			})
		}

	case OpRelease:
		v, err := e.resolve(step.Args[0])
		if err != nil {
			return err
		}
		e.tracker.Release(v)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// check evaluates one expectation and appends failures to the report.
func (e *executor) check(exp *Expectation, report *schemas.TraceReport) {
	failf := func(format string, args ...any) {
		report.Failures = append(report.Failures,
			fmt.Sprintf("expect %s: %s", exp.Var, fmt.Sprintf(format, args...)))
	}

	v, ok := e.vars[exp.Var]
	if !ok {
		failf("variable was never assigned")
		return
	}

	if exp.Value != nil && v != *exp.Value {
		failf("value mismatch: want %q, got %q", *exp.Value, v)
	}
	if exp.Tracked != nil {
		if got := e.tracker.IsTracked(v); got != *exp.Tracked {
			failf("tracked mismatch: want %v, got %v", *exp.Tracked, got)
		}
	}
	if exp.Marked != nil {
		if marked := e.tracker.RenderEvidence(v); marked != *exp.Marked {
			failf("marked mismatch: want %q, got %q", *exp.Marked, marked)
		}
	}

	if len(exp.Spans) == 0 && exp.Source == "" {
		return
	}
	ranges := e.tracker.Ranges(v)

	if len(exp.Spans) > 0 {
		if len(ranges) != len(exp.Spans) {
			failf("span count mismatch: want %d, got %d", len(exp.Spans), len(ranges))
		} else {
			for i, want := range exp.Spans {
				got := ranges[i]
				if got.Start != want.Start || got.Length != want.Length {
					failf("span %d mismatch: want [%d,%d), got [%d,%d)", i,
						want.Start, want.Start+want.Length, got.Start, got.Start+got.Length)
				}
				if want.Source != "" && sourceName(got) != want.Source {
					failf("span %d source mismatch: want %q, got %q", i, want.Source, sourceName(got))
				}
			}
		}
	}
	if exp.Source != "" {
		for i, got := range ranges {
			if sourceName(got) != exp.Source {
				failf("span %d source mismatch: want %q, got %q", i, exp.Source, sourceName(got))
			}
		}
	}
}

func sourceName(r stain.TaintRange) string {
	if r.Source == nil {
		return ""
	}
	return r.Source.Name
}
