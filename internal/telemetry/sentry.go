// Package telemetry wraps sentry-go tracing and error reporting for the
// triage, routing and index operations.
package telemetry

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serviceName  = "supportiq"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
	// Expected reports errors that are normal outcomes, such as a rejected
	// transition. They mark the span but are not sent as exceptions.
	Expected func(error) bool
}

var expected atomic.Pointer[func(error) bool]

// Init initializes Sentry with tracing enabled and returns a flush function.
// An empty DSN disables reporting and returns a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.Expected != nil {
		expected.Store(&cfg.Expected)
	}
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			// Child spans follow the parent's decision.
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func isExpected(err error) bool {
	fn := expected.Load()
	return fn != nil && (*fn)(err)
}

// SpanAttributes are the tags every ticket or index span carries.
type SpanAttributes struct {
	TicketID  string
	ActorID   string
	ActorRole string
	Operation string
}

// Span wraps sentry.Span. A nil inner span makes every method a no-op.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetTag records an outcome such as a routing decision on the span.
func (s *Span) SetTag(key, value string) {
	if s.inner != nil && value != "" {
		s.inner.SetTag(key, value)
	}
}

// SetError marks the span as failed. Unexpected errors are also captured.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	if isExpected(err) {
		s.inner.Status = sentry.SpanStatusFailedPrecondition
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if attrs.TicketID != "" {
		span.SetTag("ticket_id", attrs.TicketID)
	}
	if attrs.ActorID != "" {
		span.SetTag("actor_id", attrs.ActorID)
	}
	if attrs.ActorRole != "" {
		span.SetTag("actor_role", attrs.ActorRole)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	setAttributes(span, attrs)
	return span.Context(), &Span{inner: span}
}

// StartTransaction starts a root span for a CLI command or worker run.
func StartTransaction(ctx context.Context, name string, op string) (context.Context, *Span) {
	options := []sentry.SpanOption{sentry.WithTransactionName(name)}
	if op != "" {
		options = append(options, sentry.WithOpName(op))
	}

	span := sentry.StartSpan(ctx, op, options...)
	return span.Context(), &Span{inner: span}
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// CaptureError reports err unless it is an expected outcome.
func CaptureError(ctx context.Context, err error) {
	if err == nil || isExpected(err) {
		return
	}
	hubFrom(ctx).CaptureException(err)
}

// CaptureWarning reports a degraded but recovered condition.
func CaptureWarning(ctx context.Context, message string) {
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		hubFrom(ctx).CaptureMessage(message)
	})
}

// AddBreadcrumb records an event on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hubFrom(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
