// Package routing holds the ticket lifecycle: the confidence/risk gate that
// picks the initial state and the transition table that every later status
// change goes through.
package routing

import (
	"fmt"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

// DefaultConfidenceThreshold is the minimum confidence for automatic resolution.
const DefaultConfidenceThreshold = 0.70

// Event is something that happens to a ticket
type Event string

const (
	EventTriaged          Event = "TRIAGED"
	EventRequesterMessage Event = "REQUESTER_MESSAGE"
	EventAgentMessage     Event = "AGENT_MESSAGE"
	EventAutomatedReply   Event = "AUTOMATED_REPLY"
	EventAssign           Event = "ASSIGN"
	EventClose            Event = "CLOSE"
)

// Gate decides between automatic resolution and escalation
type Gate struct {
	ConfidenceThreshold float64
}

// DefaultGate returns a Gate using DefaultConfidenceThreshold
func DefaultGate() Gate {
	return Gate{ConfidenceThreshold: DefaultConfidenceThreshold}
}

// Decide returns AUTO_RESOLVED only when confidence reaches the threshold and
// risk is LOW. Every other combination escalates.
func (g Gate) Decide(s domain.ClassificationSignals) domain.TicketStatus {
	if s.Confidence >= g.ConfidenceThreshold && s.Risk == domain.RiskLow {
		return domain.TicketStatusAutoResolved
	}
	return domain.TicketStatusPendingAgent
}

type guard func(t *domain.Ticket, actor domain.Actor) error

// rule describes one allowed transition. A rule with gated set takes its
// target from the Gate; one with keep set leaves the status unchanged.
type rule struct {
	to    domain.TicketStatus
	gated bool
	keep  bool
	guard guard
}

type transitionKey struct {
	from  domain.TicketStatus
	event Event
}

var (
	gated      = rule{gated: true}
	keep       = rule{keep: true}
	toPending  = rule{to: domain.TicketStatusPendingAgent, guard: requesterOwnsTicket}
	toWaiting  = rule{to: domain.TicketStatusWaitingForUser, guard: agentOnly}
	toProgress = rule{to: domain.TicketStatusInProgress, guard: agentOnly}
	toClosed   = rule{to: domain.TicketStatusClosed, guard: CanClose}
)

// transitions is the whole lifecycle. Anything missing is an invalid
// transition; CLOSED has no outgoing entries.
var transitions = map[transitionKey]rule{
	{domain.TicketStatusOpen, EventTriaged}: gated,

	{domain.TicketStatusAutoResolved, EventRequesterMessage}: toPending,
	{domain.TicketStatusAutoResolved, EventAgentMessage}:     toWaiting,
	{domain.TicketStatusAutoResolved, EventAutomatedReply}:   keep,
	{domain.TicketStatusAutoResolved, EventAssign}:           toProgress,
	{domain.TicketStatusAutoResolved, EventClose}:            toClosed,

	{domain.TicketStatusPendingAgent, EventRequesterMessage}: toPending,
	{domain.TicketStatusPendingAgent, EventAgentMessage}:     toWaiting,
	{domain.TicketStatusPendingAgent, EventAutomatedReply}:   keep,
	{domain.TicketStatusPendingAgent, EventAssign}:           toProgress,
	{domain.TicketStatusPendingAgent, EventClose}:            toClosed,

	{domain.TicketStatusInProgress, EventRequesterMessage}: toPending,
	{domain.TicketStatusInProgress, EventAgentMessage}:     toWaiting,
	{domain.TicketStatusInProgress, EventAutomatedReply}:   keep,
	{domain.TicketStatusInProgress, EventAssign}:           toProgress,
	{domain.TicketStatusInProgress, EventClose}:            toClosed,

	{domain.TicketStatusWaitingForUser, EventRequesterMessage}: toPending,
	{domain.TicketStatusWaitingForUser, EventAgentMessage}:     toWaiting,
	{domain.TicketStatusWaitingForUser, EventAutomatedReply}:   keep,
	{domain.TicketStatusWaitingForUser, EventAssign}:           toProgress,
	{domain.TicketStatusWaitingForUser, EventClose}:            toClosed,
}

// Machine applies events to tickets. It never mutates the ticket.
type Machine struct {
	gate Gate
}

// NewMachine creates a Machine that resolves Triaged events with gate
func NewMachine(gate Gate) *Machine {
	return &Machine{gate: gate}
}

// Gate returns the machine's gate
func (m *Machine) Gate() Gate {
	return m.gate
}

// Transition returns the status t moves to when actor causes event. An event
// the current status does not accept yields domain.ErrInvalidTransition; a
// failed guard yields domain.ErrUnauthorized.
func (m *Machine) Transition(t *domain.Ticket, event Event, actor domain.Actor) (domain.TicketStatus, error) {
	if t == nil {
		return "", fmt.Errorf("ticket cannot be nil")
	}

	r, ok := transitions[transitionKey{from: t.Status, event: event}]
	if !ok {
		return t.Status, domain.InvalidTransitionError(t.Status, string(event))
	}

	if r.guard != nil {
		if err := r.guard(t, actor); err != nil {
			return t.Status, err
		}
	}

	switch {
	case r.gated:
		return m.gate.Decide(t.Signals), nil
	case r.keep:
		return t.Status, nil
	default:
		return r.to, nil
	}
}

// CanClose permits the ticket's requester or any agent to close it
func CanClose(t *domain.Ticket, actor domain.Actor) error {
	if actor.IsAgent() {
		return nil
	}
	if actor.Role == domain.RoleRequester && actor.ID != "" && actor.ID == t.RequesterID {
		return nil
	}
	return domain.UnauthorizedError(actor, "close ticket "+t.ID)
}

func requesterOwnsTicket(t *domain.Ticket, actor domain.Actor) error {
	if actor.Role == domain.RoleRequester && actor.ID != "" && actor.ID == t.RequesterID {
		return nil
	}
	return domain.UnauthorizedError(actor, "post a requester message on ticket "+t.ID)
}

func agentOnly(t *domain.Ticket, actor domain.Actor) error {
	if actor.IsAgent() {
		return nil
	}
	return domain.UnauthorizedError(actor, "act as agent on ticket "+t.ID)
}
