package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/cloo-solutions/supportiq/internal/service"
)

// txBeginner is satisfied by *pgxpool.Pool and by pgx.Tx (savepoints)
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxRunner runs ticket mutations in one Postgres transaction. The status
// compare-and-set in UpdateStatus is what rejects concurrent writers, so
// read committed is enough.
type TxRunner struct {
	db   txBeginner
	opts pgx.TxOptions
}

func NewTxRunner(db txBeginner) *TxRunner {
	return &TxRunner{db: db, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTx commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	if err := fn(&txRepos{tx: tx}); err != nil {
		rollback(tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rollback uses a fresh context so a cancelled request still releases the
// connection.
func rollback(tx pgx.Tx) {
	if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Printf("repository: rollback failed: %v", err)
	}
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Tickets() service.TicketStore {
	return NewTicketRepositoryWithTx(r.tx)
}
