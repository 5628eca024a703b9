package service

import "context"

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Tickets() TicketStore
}

// TxRunner executes a function within a transaction. If fn returns an error
// nothing it wrote is kept.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
