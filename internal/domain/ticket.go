package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus is a state of the ticket routing lifecycle
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "OPEN"
	TicketStatusAutoResolved   TicketStatus = "AUTO_RESOLVED"
	TicketStatusPendingAgent   TicketStatus = "PENDING_AGENT"
	TicketStatusInProgress     TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForUser TicketStatus = "WAITING_FOR_USER"
	TicketStatusClosed         TicketStatus = "CLOSED"
)

// Role is the capability an actor holds
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleAgent     Role = "AGENT"
)

// SenderRole identifies who authored a message
type SenderRole string

const (
	SenderRequester SenderRole = "REQUESTER"
	SenderAgent     SenderRole = "AGENT"
	SenderAutomated SenderRole = "AUTOMATED"
)

// Actor is the authenticated caller of a ticket operation.
type Actor struct {
	ID   string
	Role Role
}

// IsAgent reports whether the actor holds agent capability
func (a Actor) IsAgent() bool {
	return a.Role == RoleAgent
}

// Ticket represents a support request and its triage outcome
type Ticket struct {
	ID          string
	RequesterID string
	AssigneeID  string
	Title       string
	Description string
	Signals     ClassificationSignals
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is an append-only entry in a ticket's conversation
type Message struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderRole SenderRole
	Body       string
	CreatedAt  time.Time
}

// IsTerminal reports whether no further transitions are possible
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed
}

// ValidateTicket validates a Ticket instance
func ValidateTicket(t *Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket cannot be nil")
	}

	if t.ID == "" {
		return fmt.Errorf("ticket ID is required")
	}

	if t.RequesterID == "" {
		return fmt.Errorf("ticket RequesterID is required")
	}

	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("ticket Description is required")
	}

	if !IsValidTicketStatus(t.Status) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidTicketStatus.Message, fmt.Errorf("ticket Status %q", t.Status))
	}

	if err := ValidateSignals(t.Signals); err != nil {
		return fmt.Errorf("ticket Signals are invalid: %w", err)
	}

	return nil
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	if m.TicketID == "" {
		return fmt.Errorf("message TicketID is required")
	}

	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("message Body is required")
	}

	if !IsValidSenderRole(m.SenderRole) {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidSenderRole.Message, fmt.Errorf("message SenderRole %q", m.SenderRole))
	}

	return nil
}

// IsValidTicketStatus checks if a TicketStatus is valid
func IsValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusAutoResolved, TicketStatusPendingAgent,
		TicketStatusInProgress, TicketStatusWaitingForUser, TicketStatusClosed:
		return true
	}
	return false
}

// IsValidSenderRole checks if a SenderRole is valid
func IsValidSenderRole(r SenderRole) bool {
	switch r {
	case SenderRequester, SenderAgent, SenderAutomated:
		return true
	}
	return false
}
