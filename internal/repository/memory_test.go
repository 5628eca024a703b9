package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/service"
)

func newTestTicket(id string, status domain.TicketStatus) *domain.Ticket {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Ticket{
		ID:          id,
		RequesterID: "user-1",
		Title:       "Login",
		Description: "I cannot log in",
		Signals:     domain.FallbackSignals(),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tk := newTestTicket("t1", domain.TicketStatusPendingAgent)
	require.NoError(t, store.Create(ctx, tk))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, tk, got)

	got.Status = domain.TicketStatusClosed
	again, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingAgent, again.Status, "returned tickets must be copies")

	assert.ErrorIs(t, store.Create(ctx, tk), domain.ErrTicketAlreadyExists)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newTestTicket("t1", domain.TicketStatusPendingAgent)))

	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TicketStatusPendingAgent, domain.TicketStatusInProgress, "agent-1"))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.Equal(t, "agent-1", got.AssigneeID)

	err = store.UpdateStatus(ctx, "t1", domain.TicketStatusPendingAgent, domain.TicketStatusClosed, "")
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	err = store.UpdateStatus(ctx, "missing", domain.TicketStatusPendingAgent, domain.TicketStatusClosed, "")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestMemoryStore_Messages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newTestTicket("t1", domain.TicketStatusPendingAgent)))

	base := time.Now().UTC()
	require.NoError(t, store.AppendMessage(ctx, &domain.Message{ID: "m2", TicketID: "t1", SenderRole: domain.SenderAgent, Body: "second", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, store.AppendMessage(ctx, &domain.Message{ID: "m1", TicketID: "t1", SenderRole: domain.SenderRequester, Body: "first", CreatedAt: base}))

	msgs, err := store.ListMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	err = store.AppendMessage(ctx, &domain.Message{ID: "m3", TicketID: "missing", Body: "x"})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	empty, err := store.ListMessages(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Tickets().Create(ctx, newTestTicket("t1", domain.TicketStatusAutoResolved)); err != nil {
				return err
			}
			return repos.Tickets().AppendMessage(ctx, &domain.Message{ID: "m1", TicketID: "t1", SenderRole: domain.SenderAutomated, Body: "reply"})
		})
		require.NoError(t, err)

		msgs, err := store.ListMessages(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Create(ctx, newTestTicket("t1", domain.TicketStatusPendingAgent)))

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Tickets().UpdateStatus(ctx, "t1", domain.TicketStatusPendingAgent, domain.TicketStatusWaitingForUser, ""); err != nil {
				return err
			}
			if err := repos.Tickets().AppendMessage(ctx, &domain.Message{ID: "m1", TicketID: "t1", SenderRole: domain.SenderAgent, Body: "hi"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetByID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPendingAgent, got.Status)

		msgs, err := store.ListMessages(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
