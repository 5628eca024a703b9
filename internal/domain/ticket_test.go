package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   TicketStatus
		expected string
	}{
		{"Open", TicketStatusOpen, "OPEN"},
		{"AutoResolved", TicketStatusAutoResolved, "AUTO_RESOLVED"},
		{"PendingAgent", TicketStatusPendingAgent, "PENDING_AGENT"},
		{"InProgress", TicketStatusInProgress, "IN_PROGRESS"},
		{"WaitingForUser", TicketStatusWaitingForUser, "WAITING_FOR_USER"},
		{"Closed", TicketStatusClosed, "CLOSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
			assert.True(t, IsValidTicketStatus(tt.status))
		})
	}

	assert.False(t, IsValidTicketStatus("RESOLVED"))
	assert.True(t, TicketStatusClosed.IsTerminal())
	assert.False(t, TicketStatusWaitingForUser.IsTerminal())
}

func TestValidateTicket(t *testing.T) {
	now := time.Now().UTC()
	valid := func() *Ticket {
		return &Ticket{
			ID:          "ticket-1",
			RequesterID: "user-1",
			Title:       "Password",
			Description: "how do I reset password",
			Signals:     validSignals(),
			Status:      TicketStatusAutoResolved,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	t.Run("valid ticket", func(t *testing.T) {
		assert.NoError(t, ValidateTicket(valid()))
	})

	t.Run("nil ticket", func(t *testing.T) {
		assert.EqualError(t, ValidateTicket(nil), "ticket cannot be nil")
	})

	t.Run("missing ID", func(t *testing.T) {
		tk := valid()
		tk.ID = ""
		assert.EqualError(t, ValidateTicket(tk), "ticket ID is required")
	})

	t.Run("missing requester", func(t *testing.T) {
		tk := valid()
		tk.RequesterID = ""
		assert.EqualError(t, ValidateTicket(tk), "ticket RequesterID is required")
	})

	t.Run("blank description", func(t *testing.T) {
		tk := valid()
		tk.Description = "  "
		assert.EqualError(t, ValidateTicket(tk), "ticket Description is required")
	})

	t.Run("invalid status", func(t *testing.T) {
		tk := valid()
		tk.Status = "DONE"
		assert.ErrorIs(t, ValidateTicket(tk), ErrInvalidTicketStatus)
	})

	t.Run("partial signals are rejected", func(t *testing.T) {
		tk := valid()
		tk.Signals = ClassificationSignals{Category: CategoryBilling}
		err := ValidateTicket(tk)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSignals))
	})
}

func TestValidateMessage(t *testing.T) {
	valid := func() *Message {
		return &Message{
			ID:         "msg-1",
			TicketID:   "ticket-1",
			SenderID:   "user-1",
			SenderRole: SenderRequester,
			Body:       "still broken",
			CreatedAt:  time.Now().UTC(),
		}
	}

	assert.NoError(t, ValidateMessage(valid()))

	m := valid()
	m.Body = ""
	assert.EqualError(t, ValidateMessage(m), "message Body is required")

	m = valid()
	m.SenderRole = "BOT"
	assert.ErrorIs(t, ValidateMessage(m), ErrInvalidSenderRole)

	m = valid()
	m.TicketID = ""
	assert.EqualError(t, ValidateMessage(m), "message TicketID is required")
}

func TestDomainError_Is(t *testing.T) {
	t.Run("wrapped cause still matches sentinel", func(t *testing.T) {
		err := InvalidTransitionError(TicketStatusClosed, "close")
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.False(t, errors.Is(err, ErrUnauthorized))
		assert.Contains(t, err.Error(), "CLOSED")
	})

	t.Run("fmt wrapping preserves match", func(t *testing.T) {
		err := fmt.Errorf("close ticket: %w", UnauthorizedError(Actor{ID: "u2", Role: RoleRequester}, "close"))
		assert.True(t, errors.Is(err, ErrUnauthorized))
		assert.False(t, errors.Is(err, ErrInvalidTransition))
	})

	t.Run("status conflict is distinct from invalid transition", func(t *testing.T) {
		assert.False(t, errors.Is(ErrStatusConflict, ErrInvalidTransition))
	})

	t.Run("error string includes code", func(t *testing.T) {
		assert.Equal(t, "[EMPTY_CORPUS] corpus has no documents", ErrEmptyCorpus.Error())
	})
}
