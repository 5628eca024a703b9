package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/service"
)

// MemoryStore is an in-process ticket store. Transactions work on a private
// copy of the state that replaces the shared one only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	tickets  map[string]domain.Ticket
	messages map[string][]domain.Message
}

func newMemState() *memState {
	return &memState{
		tickets:  make(map[string]domain.Ticket),
		messages: make(map[string][]domain.Message),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, t := range s.tickets {
		c.tickets[id] = t
	}
	for id, msgs := range s.messages {
		c.messages[id] = append([]domain.Message(nil), msgs...)
	}
	return c
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// WithTx runs fn against a copy of the store and commits it if fn succeeds
func (m *MemoryStore) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&memTxRepos{view: &memView{state: staged}}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memView{state: m.state}).Create(ctx, t)
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memView{state: m.state}).GetByID(ctx, id)
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus, assigneeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memView{state: m.state}).UpdateStatus(ctx, id, from, to, assigneeID)
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memView{state: m.state}).AppendMessage(ctx, msg)
}

func (m *MemoryStore) ListMessages(ctx context.Context, ticketID string) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memView{state: m.state}).ListMessages(ctx, ticketID)
}

type memTxRepos struct {
	view *memView
}

func (r *memTxRepos) Tickets() service.TicketStore {
	return r.view
}

// memView implements the store operations on one state without locking
type memView struct {
	state *memState
}

func (v *memView) Create(_ context.Context, t *domain.Ticket) error {
	if _, ok := v.state.tickets[t.ID]; ok {
		return domain.ErrTicketAlreadyExists
	}
	v.state.tickets[t.ID] = *t
	return nil
}

func (v *memView) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := v.state.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return &t, nil
}

func (v *memView) UpdateStatus(_ context.Context, id string, from, to domain.TicketStatus, assigneeID string) error {
	t, ok := v.state.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if t.Status != from {
		return domain.ErrStatusConflict
	}
	t.Status = to
	t.AssigneeID = assigneeID
	t.UpdatedAt = timeNow()
	v.state.tickets[id] = t
	return nil
}

func (v *memView) AppendMessage(_ context.Context, msg *domain.Message) error {
	if _, ok := v.state.tickets[msg.TicketID]; !ok {
		return domain.ErrTicketNotFound
	}
	v.state.messages[msg.TicketID] = append(v.state.messages[msg.TicketID], *msg)
	return nil
}

func (v *memView) ListMessages(_ context.Context, ticketID string) ([]*domain.Message, error) {
	msgs := v.state.messages[ticketID]
	out := make([]*domain.Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		out[i] = &m
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
