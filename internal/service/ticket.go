package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/supportiq/internal/compose"
	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/routing"
	"github.com/cloo-solutions/supportiq/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultGenerateTimeout bounds one generator call when none is configured.
const DefaultGenerateTimeout = 30 * time.Second

// ErrAssistantUnavailable is returned by Create and DraftReply when the service
// was built without a triage engine, composer or generator.
var ErrAssistantUnavailable = errors.New("ticket assistant is not configured")

// TicketStore persists tickets and their messages. UpdateStatus is a
// compare-and-set: it fails with domain.ErrStatusConflict unless the stored
// status equals from.
type TicketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus, assigneeID string) error
	AppendMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, ticketID string) ([]*domain.Message, error)
}

// Locker serializes work on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// TriageEngine classifies a new ticket. It always returns valid signals.
type TriageEngine interface {
	Classify(ctx context.Context, title, description string) domain.ClassificationSignals
}

// ReplyComposer builds generator input from retrieval, signals and history
type ReplyComposer interface {
	Compose(ctx context.Context, description string, signals domain.ClassificationSignals, history []domain.Message) (*compose.GenerationInput, error)
	ComposeDraft(ctx context.Context, description string, signals domain.ClassificationSignals, history []domain.Message) (*compose.GenerationInput, error)
}

// Generator writes reply text from a composed input
type Generator interface {
	Generate(ctx context.Context, in *compose.GenerationInput) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// TicketServiceDeps holds the collaborators of a TicketService
type TicketServiceDeps struct {
	Tickets  TicketStore
	TxRunner TxRunner
	Locker   Locker
	Machine  *routing.Machine

	// Needed only by Create and DraftReply
	Triage    TriageEngine
	Composer  ReplyComposer
	Generator Generator

	// Optional
	UUIDGen         UUIDGenerator
	Now             func() time.Time
	GenerateTimeout time.Duration
}

// TicketService runs the ticket lifecycle: triage at creation, automatic
// replies, and every later status change through the routing machine.
type TicketService struct {
	tickets         TicketStore
	txRunner        TxRunner
	locker          Locker
	triage          TriageEngine
	machine         *routing.Machine
	composer        ReplyComposer
	generator       Generator
	uuidGen         UUIDGenerator
	now             func() time.Time
	generateTimeout time.Duration
}

// NewTicketService creates a new TicketService instance
func NewTicketService(deps TicketServiceDeps) *TicketService {
	s := &TicketService{
		tickets:         deps.Tickets,
		txRunner:        deps.TxRunner,
		locker:          deps.Locker,
		triage:          deps.Triage,
		machine:         deps.Machine,
		composer:        deps.Composer,
		generator:       deps.Generator,
		uuidGen:         deps.UUIDGen,
		now:             deps.Now,
		generateTimeout: deps.GenerateTimeout,
	}
	if s.uuidGen == nil {
		s.uuidGen = &DefaultUUIDGenerator{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.machine == nil {
		s.machine = routing.NewMachine(routing.DefaultGate())
	}
	if s.generateTimeout <= 0 {
		s.generateTimeout = DefaultGenerateTimeout
	}
	return s
}

func (s *TicketService) hasAssistant() bool {
	return s.triage != nil && s.composer != nil && s.generator != nil
}

// CreateTicketInput represents the input for creating a ticket
type CreateTicketInput struct {
	Title       string
	Description string
}

// MessageResult is the outcome of posting a message
type MessageResult struct {
	Ticket  *domain.Ticket
	Message *domain.Message
}

// Create classifies a new request, routes it, and for automatable tickets
// generates and stores the automatic reply. Composition and generation run
// before anything is written, so a failure there leaves no ticket behind.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*MessageResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Create", telemetry.SpanAttributes{
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "create",
	})
	defer span.End()

	if actor.ID == "" {
		return nil, missingField("actor ID")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, missingField("description")
	}
	if !s.hasAssistant() {
		return nil, ErrAssistantUnavailable
	}

	signals := s.triage.Classify(ctx, input.Title, input.Description)

	now := s.now()
	ticket := &domain.Ticket{
		ID:          s.uuidGen.NewString(),
		RequesterID: actor.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Signals:     signals,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	status, err := s.machine.Transition(ticket, routing.EventTriaged, actor)
	if err != nil {
		return nil, err
	}
	ticket.Status = status
	span.SetTag("route.decision", string(status))

	var reply *domain.Message
	if status == domain.TicketStatusAutoResolved {
		if _, err := s.machine.Transition(ticket, routing.EventAutomatedReply, actor); err != nil {
			return nil, err
		}
		body, err := s.generate(ctx, func(ctx context.Context) (*compose.GenerationInput, error) {
			return s.composer.Compose(ctx, ticket.Description, signals, nil)
		})
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to generate automatic reply: %w", err)
		}
		reply = &domain.Message{
			ID:         s.uuidGen.NewString(),
			TicketID:   ticket.ID,
			SenderRole: domain.SenderAutomated,
			Body:       body,
			CreatedAt:  now,
		}
	}

	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid ticket", err)
	}
	if reply != nil {
		if err := domain.ValidateMessage(reply); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		if reply != nil {
			return repos.Tickets().AppendMessage(ctx, reply)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &MessageResult{Ticket: ticket, Message: reply}, nil
}

// PostMessage appends a requester or agent message and moves the ticket to
// the state the routing machine picks for that sender.
func (s *TicketService) PostMessage(ctx context.Context, actor domain.Actor, ticketID, body string) (*MessageResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.PostMessage", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "post_message",
	})
	defer span.End()

	if strings.TrimSpace(body) == "" {
		return nil, missingField("message body")
	}

	event, senderRole, err := messageEvent(actor)
	if err != nil {
		return nil, err
	}

	var result *MessageResult
	err = s.mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		to, err := s.machine.Transition(ticket, event, actor)
		if err != nil {
			return err
		}

		now := s.now()
		msg := &domain.Message{
			ID:         s.uuidGen.NewString(),
			TicketID:   ticket.ID,
			SenderID:   actor.ID,
			SenderRole: senderRole,
			Body:       strings.TrimSpace(body),
			CreatedAt:  now,
		}
		if err := domain.ValidateMessage(msg); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
		}

		err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Tickets().UpdateStatus(ctx, ticket.ID, ticket.Status, to, ticket.AssigneeID); err != nil {
				return err
			}
			return repos.Tickets().AppendMessage(ctx, msg)
		})
		if err != nil {
			return err
		}

		ticket.Status = to
		ticket.UpdatedAt = now
		result = &MessageResult{Ticket: ticket, Message: msg}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return result, nil
}

// Close closes a ticket for its requester or any agent. Closing twice is an
// invalid transition.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Close", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "close",
	})
	defer span.End()

	ticket, err := s.applyStatusEvent(ctx, actor, ticketID, routing.EventClose, "")
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return ticket, nil
}

// Assign lets an agent claim a ticket, moving it to IN_PROGRESS
func (s *TicketService) Assign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Assign", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "assign",
	})
	defer span.End()

	ticket, err := s.applyStatusEvent(ctx, actor, ticketID, routing.EventAssign, actor.ID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return ticket, nil
}

// DraftReply generates a suggested reply for an agent. The draft is returned,
// never stored.
func (s *TicketService) DraftReply(ctx context.Context, actor domain.Actor, ticketID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.DraftReply", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "draft_reply",
	})
	defer span.End()

	if !actor.IsAgent() {
		return "", domain.UnauthorizedError(actor, "draft a reply")
	}
	if !s.hasAssistant() {
		return "", ErrAssistantUnavailable
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}

	history, err := s.tickets.ListMessages(ctx, ticketID)
	if err != nil {
		return "", err
	}

	draft, err := s.generate(ctx, func(ctx context.Context) (*compose.GenerationInput, error) {
		return s.composer.ComposeDraft(ctx, ticket.Description, ticket.Signals, derefMessages(history))
	})
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("failed to generate draft reply: %w", err)
	}
	return draft, nil
}

// Get returns a ticket visible to actor
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.Get", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "get",
	})
	defer span.End()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := canView(ticket, actor); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListMessages returns a ticket's conversation, oldest first
func (s *TicketService) ListMessages(ctx context.Context, actor domain.Actor, ticketID string) ([]*domain.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "TicketService.ListMessages", telemetry.SpanAttributes{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Operation: "list_messages",
	})
	defer span.End()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := canView(ticket, actor); err != nil {
		return nil, err
	}
	return s.tickets.ListMessages(ctx, ticketID)
}

// applyStatusEvent runs a status-only event. A non-empty assigneeID replaces
// the current assignee.
func (s *TicketService) applyStatusEvent(ctx context.Context, actor domain.Actor, ticketID string, event routing.Event, assigneeID string) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := s.mutate(ctx, ticketID, func(ticket *domain.Ticket) error {
		to, err := s.machine.Transition(ticket, event, actor)
		if err != nil {
			return err
		}

		assignee := ticket.AssigneeID
		if assigneeID != "" {
			assignee = assigneeID
		}

		err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			return repos.Tickets().UpdateStatus(ctx, ticket.ID, ticket.Status, to, assignee)
		})
		if err != nil {
			return err
		}

		ticket.Status = to
		ticket.AssigneeID = assignee
		ticket.UpdatedAt = s.now()
		updated = ticket
		return nil
	})
	return updated, err
}

// mutate loads a ticket under its lock and hands it to fn
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn func(ticket *domain.Ticket) error) error {
	if ticketID == "" {
		return missingField("ticket ID")
	}

	unlock, err := s.locker.Lock(ctx, "ticket:"+ticketID)
	if err != nil {
		return fmt.Errorf("failed to lock ticket %s: %w", ticketID, err)
	}
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	return fn(ticket)
}

// generate composes an input and calls the generator under the configured timeout
func (s *TicketService) generate(ctx context.Context, build func(ctx context.Context) (*compose.GenerationInput, error)) (string, error) {
	in, err := build(ctx)
	if err != nil {
		return "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, in)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("generator returned an empty reply")
	}
	return strings.TrimSpace(text), nil
}

func messageEvent(actor domain.Actor) (routing.Event, domain.SenderRole, error) {
	switch actor.Role {
	case domain.RoleRequester:
		return routing.EventRequesterMessage, domain.SenderRequester, nil
	case domain.RoleAgent:
		return routing.EventAgentMessage, domain.SenderAgent, nil
	default:
		return "", "", domain.UnauthorizedError(actor, "post a message")
	}
}

func canView(ticket *domain.Ticket, actor domain.Actor) error {
	if actor.IsAgent() || (actor.ID != "" && actor.ID == ticket.RequesterID) {
		return nil
	}
	return domain.UnauthorizedError(actor, "view ticket "+ticket.ID)
}

func missingField(name string) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrMissingRequiredField.Message,
		fmt.Errorf("%s is required", name))
}

func derefMessages(msgs []*domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}
