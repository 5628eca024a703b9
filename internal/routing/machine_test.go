package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/supportiq/internal/domain"
)

var (
	requester = domain.Actor{ID: "user-1", Role: domain.RoleRequester}
	stranger  = domain.Actor{ID: "user-2", Role: domain.RoleRequester}
	agent     = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
)

func ticketIn(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:          "ticket-1",
		RequesterID: requester.ID,
		Status:      status,
		Signals:     domain.FallbackSignals(),
	}
}

var liveStatuses = []domain.TicketStatus{
	domain.TicketStatusAutoResolved,
	domain.TicketStatusPendingAgent,
	domain.TicketStatusInProgress,
	domain.TicketStatusWaitingForUser,
}

func TestGate_Decide(t *testing.T) {
	gate := DefaultGate()

	tests := []struct {
		name       string
		confidence float64
		risk       domain.RiskLevel
		want       domain.TicketStatus
	}{
		{"confident and low risk", 0.85, domain.RiskLow, domain.TicketStatusAutoResolved},
		{"exactly at threshold", 0.70, domain.RiskLow, domain.TicketStatusAutoResolved},
		{"full confidence", 1.0, domain.RiskLow, domain.TicketStatusAutoResolved},
		{"just below threshold", 0.6999, domain.RiskLow, domain.TicketStatusPendingAgent},
		{"fallback confidence", 0.5, domain.RiskLow, domain.TicketStatusPendingAgent},
		{"medium risk", 0.95, domain.RiskMedium, domain.TicketStatusPendingAgent},
		{"high risk", 0.9, domain.RiskHigh, domain.TicketStatusPendingAgent},
		{"zero confidence high risk", 0, domain.RiskHigh, domain.TicketStatusPendingAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Decide(domain.ClassificationSignals{Confidence: tt.confidence, Risk: tt.risk})
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("custom threshold", func(t *testing.T) {
		strict := Gate{ConfidenceThreshold: 0.9}
		assert.Equal(t, domain.TicketStatusPendingAgent, strict.Decide(domain.ClassificationSignals{Confidence: 0.85, Risk: domain.RiskLow}))
	})

	t.Run("fallback signals never auto resolve", func(t *testing.T) {
		assert.Equal(t, domain.TicketStatusPendingAgent, gate.Decide(domain.FallbackSignals()))
	})
}

func TestMachine_Triaged(t *testing.T) {
	m := NewMachine(DefaultGate())

	t.Run("open ticket uses gate", func(t *testing.T) {
		tk := ticketIn(domain.TicketStatusOpen)
		tk.Signals = domain.ClassificationSignals{Confidence: 0.85, Risk: domain.RiskLow}

		got, err := m.Transition(tk, EventTriaged, agent)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusAutoResolved, got)
	})

	t.Run("escalates high risk", func(t *testing.T) {
		tk := ticketIn(domain.TicketStatusOpen)
		tk.Signals = domain.ClassificationSignals{Confidence: 0.9, Risk: domain.RiskHigh}

		got, err := m.Transition(tk, EventTriaged, agent)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingAgent, got)
	})

	t.Run("no re-triage after decision", func(t *testing.T) {
		for _, s := range liveStatuses {
			_, err := m.Transition(ticketIn(s), EventTriaged, agent)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, s)
		}
	})
}

func TestMachine_Messages(t *testing.T) {
	m := NewMachine(DefaultGate())

	for _, s := range liveStatuses {
		t.Run(string(s), func(t *testing.T) {
			got, err := m.Transition(ticketIn(s), EventRequesterMessage, requester)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusPendingAgent, got)

			got, err = m.Transition(ticketIn(s), EventAgentMessage, agent)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusWaitingForUser, got)

			got, err = m.Transition(ticketIn(s), EventAutomatedReply, agent)
			require.NoError(t, err)
			assert.Equal(t, s, got)

			got, err = m.Transition(ticketIn(s), EventAssign, agent)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusInProgress, got)
		})
	}

	t.Run("requester message from someone else", func(t *testing.T) {
		_, err := m.Transition(ticketIn(domain.TicketStatusWaitingForUser), EventRequesterMessage, stranger)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("agent posting as requester", func(t *testing.T) {
		_, err := m.Transition(ticketIn(domain.TicketStatusWaitingForUser), EventRequesterMessage, agent)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("requester posting as agent", func(t *testing.T) {
		_, err := m.Transition(ticketIn(domain.TicketStatusPendingAgent), EventAgentMessage, requester)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("requester cannot assign", func(t *testing.T) {
		got, err := m.Transition(ticketIn(domain.TicketStatusPendingAgent), EventAssign, requester)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, domain.TicketStatusPendingAgent, got)
	})

	t.Run("open ticket accepts no messages", func(t *testing.T) {
		for _, ev := range []Event{EventRequesterMessage, EventAgentMessage, EventAutomatedReply, EventAssign, EventClose} {
			_, err := m.Transition(ticketIn(domain.TicketStatusOpen), ev, agent)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, ev)
		}
	})
}

func TestMachine_Close(t *testing.T) {
	m := NewMachine(DefaultGate())

	t.Run("requester closes own ticket", func(t *testing.T) {
		got, err := m.Transition(ticketIn(domain.TicketStatusAutoResolved), EventClose, requester)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, got)
	})

	t.Run("agent closes any ticket", func(t *testing.T) {
		got, err := m.Transition(ticketIn(domain.TicketStatusInProgress), EventClose, agent)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, got)
	})

	t.Run("other requester cannot close", func(t *testing.T) {
		got, err := m.Transition(ticketIn(domain.TicketStatusPendingAgent), EventClose, stranger)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.NotErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.TicketStatusPendingAgent, got)
	})

	t.Run("double close is invalid and keeps status", func(t *testing.T) {
		tk := ticketIn(domain.TicketStatusPendingAgent)
		got, err := m.Transition(tk, EventClose, requester)
		require.NoError(t, err)
		tk.Status = got

		got, err = m.Transition(tk, EventClose, requester)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.TicketStatusClosed, got)
		assert.Contains(t, err.Error(), "CLOSED")
	})

	t.Run("closed ticket rejects every event", func(t *testing.T) {
		for _, ev := range []Event{EventTriaged, EventRequesterMessage, EventAgentMessage, EventAutomatedReply, EventAssign, EventClose} {
			_, err := m.Transition(ticketIn(domain.TicketStatusClosed), ev, agent)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, ev)
		}
	})
}

func TestMachine_DoesNotMutateTicket(t *testing.T) {
	tk := ticketIn(domain.TicketStatusPendingAgent)
	_, err := NewMachine(DefaultGate()).Transition(tk, EventAgentMessage, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingAgent, tk.Status)
}

func TestCanClose(t *testing.T) {
	tk := ticketIn(domain.TicketStatusPendingAgent)

	assert.NoError(t, CanClose(tk, requester))
	assert.NoError(t, CanClose(tk, agent))
	assert.ErrorIs(t, CanClose(tk, stranger), domain.ErrUnauthorized)
	assert.ErrorIs(t, CanClose(tk, domain.Actor{}), domain.ErrUnauthorized)
}

func TestTransitionTable(t *testing.T) {
	for key := range transitions {
		assert.NotEqual(t, domain.TicketStatusClosed, key.from, "closed tickets must not transition")
	}
}
