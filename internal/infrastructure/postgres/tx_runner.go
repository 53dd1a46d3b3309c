package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// txBeginner lo satisface *pgxpool.Pool.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ txBeginner = (*pgxpool.Pool)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
// Ante serialización fallida o deadlock se re-ejecuta el callback completo con backoff exponencial.
type TxRunner struct {
	pool       txBeginner
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, maxRetries int) *TxRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxRunner{
		pool:       pool,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
}

// RunInTx inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(repos repository.Repos) error) error {
	attempt := func() error {
		err := r.runOnce(ctx, fn)
		if err == nil || isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	err := backoff.Retry(attempt, policy)
	if err != nil && isRetryable(err) {
		return fmt.Errorf("conflicto de concurrencia persistente: %w", err)
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ReposFor(tx)); err != nil {
		if isCheckViolation(err) {
			return domain.Errorf(domain.ErrFailedPrecondition, "la operación dejaría un saldo negativo")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReposFor repositorios atados al mismo Querier (pool o transacción).
func ReposFor(q Querier) repository.Repos {
	return repository.Repos{
		Users:        NewUserRepository(q),
		Transactions: NewTransactionRepository(q),
		Submissions:  NewCashSubmissionRepository(q),
		Cards:        NewPointCardRepository(q),
		Merchants:    NewMerchantRepository(q),
		Tenants:      NewTenantRepository(q),
	}
}
