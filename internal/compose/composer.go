// Package compose assembles the input handed to the reply generator:
// retrieved reference text, triage signals and the conversation so far.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/telemetry"
)

// Retriever answers threshold-filtered nearest-neighbour queries
type Retriever interface {
	Query(ctx context.Context, text string, k int, threshold float32) (domain.RetrievalResult, error)
}

// Mode tells the generator who the reply is for
type Mode string

const (
	// ModeAutoReply is a reply sent to the requester without human review
	ModeAutoReply Mode = "AUTO_REPLY"
	// ModeAgentDraft is a suggestion shown to an agent, never sent as is
	ModeAgentDraft Mode = "AGENT_DRAFT"
)

const contextSeparator = "\n\n"

// GenerationInput is everything a generator needs to write one reply
type GenerationInput struct {
	Mode        Mode
	Description string
	Context     string
	Signals     domain.ClassificationSignals
	Transcript  string
	Retrieved   domain.RetrievalResult
}

// Composer builds GenerationInput values
type Composer struct {
	retriever Retriever
	k         int
	threshold float32
}

// NewComposer creates a Composer that retrieves up to k chunks within threshold
func NewComposer(retriever Retriever, k int, threshold float32) *Composer {
	return &Composer{
		retriever: retriever,
		k:         k,
		threshold: threshold,
	}
}

// Compose builds the input for an automatic reply. Retrieval always uses the
// ticket description. An unavailable index is returned as an error.
func (c *Composer) Compose(ctx context.Context, description string, signals domain.ClassificationSignals, history []domain.Message) (*GenerationInput, error) {
	return c.compose(ctx, ModeAutoReply, description, signals, history)
}

// ComposeDraft builds the input for an agent-facing draft reply
func (c *Composer) ComposeDraft(ctx context.Context, description string, signals domain.ClassificationSignals, history []domain.Message) (*GenerationInput, error) {
	return c.compose(ctx, ModeAgentDraft, description, signals, history)
}

func (c *Composer) compose(ctx context.Context, mode Mode, description string, signals domain.ClassificationSignals, history []domain.Message) (*GenerationInput, error) {
	ctx, span := telemetry.StartSpan(ctx, "Composer.Compose", telemetry.SpanAttributes{
		Operation: string(mode),
	})
	defer span.End()

	result, err := c.retriever.Query(ctx, description, c.k, c.threshold)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	return &GenerationInput{
		Mode:        mode,
		Description: description,
		Context:     strings.Join(result.Texts(), contextSeparator),
		Signals:     signals,
		Transcript:  RenderTranscript(history),
		Retrieved:   result,
	}, nil
}

// RenderTranscript renders messages as "ROLE: body" lines in the given order
func RenderTranscript(history []domain.Message) string {
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(msg.SenderRole))
		b.WriteString(": ")
		b.WriteString(msg.Body)
	}
	return b.String()
}
