package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

// fakeTx solo implementa Commit y Rollback; el resto de pgx.Tx no se usa.
type fakeTx struct {
	pgx.Tx
	commitErr error
	commits   *int32
	rollbacks *int32
	committed bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	atomic.AddInt32(t.commits, 1)
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		atomic.AddInt32(t.rollbacks, 1)
	}
	return nil
}

// fakeBeginner entrega una fakeTx por intento; commitErr decide el resultado del Commit del intento n.
type fakeBeginner struct {
	begins    int32
	commits   int32
	rollbacks int32
	commitErr func(n int32) error
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	n := atomic.AddInt32(&b.begins, 1)
	tx := &fakeTx{commits: &b.commits, rollbacks: &b.rollbacks}
	if b.commitErr != nil {
		tx.commitErr = b.commitErr(n)
	}
	return tx, nil
}

func newTestRunner(b txBeginner, maxRetries uint64) *TxRunner {
	return &TxRunner{
		pool:       b,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func TestRunInTx_SerializacionFallida_ReejecutaCallbackCompleto(t *testing.T) {
	b := &fakeBeginner{}
	r := newTestRunner(b, 3)

	calls := 0
	err := r.RunInTx(context.Background(), func(repository.Repos) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("lock users: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(2), b.begins)
	assert.Equal(t, int32(1), b.commits)
	assert.Equal(t, int32(1), b.rollbacks)
}

func TestRunInTx_DeadlockEnCommit_Reintenta(t *testing.T) {
	b := &fakeBeginner{commitErr: func(n int32) error {
		if n == 1 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	}}
	r := newTestRunner(b, 3)

	calls := 0
	err := r.RunInTx(context.Background(), func(repository.Repos) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(1), b.commits)
}

func TestRunInTx_ErrorNoReintentable_UnSoloIntento(t *testing.T) {
	b := &fakeBeginner{}
	r := newTestRunner(b, 3)

	calls := 0
	err := r.RunInTx(context.Background(), func(repository.Repos) error {
		calls++
		return domain.Errorf(domain.ErrNotFound, "usuario u1 no encontrado")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
	assert.Equal(t, int32(0), b.commits)
	assert.Equal(t, int32(1), b.rollbacks)
}

func TestRunInTx_ConflictoPersistente_AgotaReintentos(t *testing.T) {
	b := &fakeBeginner{}
	r := newTestRunner(b, 2)

	calls := 0
	err := r.RunInTx(context.Background(), func(repository.Repos) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, isRetryable(err))
	assert.Contains(t, err.Error(), "conflicto de concurrencia persistente")
	assert.Equal(t, int32(0), b.commits)
}

func TestRunInTx_ViolacionCheck_FailedPreconditionSinReintento(t *testing.T) {
	b := &fakeBeginner{}
	r := newTestRunner(b, 3)

	calls := 0
	err := r.RunInTx(context.Background(), func(repository.Repos) error {
		calls++
		return fmt.Errorf("update user balances: %w", &pgconn.PgError{Code: "23514"})
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, domain.ErrFailedPrecondition))
	assert.Equal(t, "la operación dejaría un saldo negativo", domain.MessageOf(err))
}

func TestRunInTx_Concurrente_CadaUnidadReintentaPorSeparado(t *testing.T) {
	const workers = 8
	// El primer commit de cada par de intentos pierde la serialización.
	b := &fakeBeginner{commitErr: func(n int32) error {
		if n%2 == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}}
	r := newTestRunner(b, 2*workers)

	var calls int32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.RunInTx(context.Background(), func(repository.Repos) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(workers), b.commits)
	assert.Equal(t, b.begins, atomic.LoadInt32(&calls))
	assert.Equal(t, b.begins-b.commits, b.rollbacks)
}

func TestRunInTx_ContextoCancelado_NoReintenta(t *testing.T) {
	b := &fakeBeginner{}
	r := newTestRunner(b, 5)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.RunInTx(ctx, func(repository.Repos) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
