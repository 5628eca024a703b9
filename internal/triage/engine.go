// Package triage turns untrusted classifier output into validated
// classification signals. Classify is total: whatever the classifier does,
// the caller gets a valid signal set back.
package triage

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/telemetry"
)

// DefaultTimeout bounds a single classifier call when none is configured.
const DefaultTimeout = 20 * time.Second

// Classifier returns the raw text produced for a triage request
type Classifier interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// Stats counts classifier invocations and how many fell back
type Stats struct {
	Calls     int64
	Fallbacks int64
}

// Engine classifies tickets through a Classifier
type Engine struct {
	classifier Classifier
	timeout    time.Duration

	calls     atomic.Int64
	fallbacks atomic.Int64
}

// NewEngine creates an Engine. A non-positive timeout uses DefaultTimeout.
func NewEngine(classifier Classifier, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		classifier: classifier,
		timeout:    timeout,
	}
}

// Classify calls the classifier once and validates its output. Errors,
// timeouts and malformed output all yield domain.FallbackSignals.
func (e *Engine) Classify(ctx context.Context, title, description string) domain.ClassificationSignals {
	ctx, span := telemetry.StartSpan(ctx, "TriageEngine.Classify", telemetry.SpanAttributes{
		Operation: "classify",
	})
	defer span.End()

	e.calls.Add(1)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := e.call(callCtx, NewRequest(title, description))
	if err != nil {
		span.SetTag("triage.fallback", "true")
		return e.fallback(ctx, fmt.Errorf("classifier call failed: %w", err))
	}

	signals, err := Parse(output)
	if err != nil {
		span.SetTag("triage.fallback", "true")
		return e.fallback(ctx, err)
	}
	span.SetTag("triage.category", string(signals.Category))
	span.SetTag("triage.risk", string(signals.Risk))
	return signals
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		Calls:     e.calls.Load(),
		Fallbacks: e.fallbacks.Load(),
	}
}

type classifyResult struct {
	output string
	err    error
}

// call returns when the classifier does or when ctx expires, whichever is
// first, so a classifier that ignores its context cannot stall triage.
func (e *Engine) call(ctx context.Context, req Request) (string, error) {
	done := make(chan classifyResult, 1)
	go func() {
		output, err := e.classifier.Classify(ctx, req)
		done <- classifyResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) fallback(ctx context.Context, reason error) domain.ClassificationSignals {
	e.fallbacks.Add(1)
	log.Printf("triage: using fallback signals: %v", reason)
	telemetry.AddBreadcrumb(ctx, "triage", "fallback signals: "+reason.Error())
	return domain.FallbackSignals()
}
