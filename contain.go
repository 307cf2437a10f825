package stain

import (
	"fmt"

	"go.uber.org/zap"
)

// contain runs one aspect's propagation step under the containment
// contract. The caller computes the host-visible result of the operation
// BEFORE propagation runs, so nothing in here can alter host semantics:
// a panic or an error inside fn degrades to "the output is untracked",
// one rate-limited diagnostic, and a counter bump. This wrapper guards
// every aspect without exception.
func (t *Tracker) contain(aspect string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			t.noteFailure(aspect, newPropagationFailure(aspect, fmt.Errorf("panic: %v", r)))
		}
	}()
	if hook := t.propagationHook; hook != nil {
		if err := hook(aspect); err != nil {
			t.noteFailure(aspect, err)
			return
		}
	}
	if err := fn(); err != nil {
		t.noteFailure(aspect, err)
	}
}

func (t *Tracker) noteFailure(aspect string, err error) {
	if isBudgetErr(err) {
		t.stats.dropped.Add(1)
		if t.failLog.Allow() {
			t.logger.Debug("taint registration dropped",
				zap.String("aspect", aspect),
				zap.Error(err),
			)
		}
		return
	}

	t.stats.failures.Add(1)
	if !IsInvalidRange(err) && !IsPropagationFailure(err) {
		err = newPropagationFailure(aspect, err)
	}
	if t.failLog.Allow() {
		t.logger.Error("taint propagation contained",
			zap.String("aspect", aspect),
			zap.Error(err),
		)
	}
}
