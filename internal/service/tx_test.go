package service

import "context"

type testTxRepos struct {
	tickets TicketStore
}

func (t *testTxRepos) Tickets() TicketStore {
	return t.tickets
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
