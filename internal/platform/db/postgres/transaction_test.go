package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestTransactionManager_ReadWriteCommit(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()

	err = tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		if _, ok := txFromContext(ctx); !ok {
			t.Fatalf("transaction not injected into context")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("WithinReadWrite returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_ReadOnlyRollbackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectRollback()

	expectedErr := errors.New("usecase error")
	err = tm.WithinReadOnly(context.Background(), func(ctx context.Context) error {
		if _, ok := txFromContext(ctx); !ok {
			t.Fatalf("transaction not injected into context")
		}
		return expectedErr
	})

	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected %v, got %v", expectedErr, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_NestedReuse(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()

	err = tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		return tm.WithinReadOnly(ctx, func(inner context.Context) error {
			if _, ok := txFromContext(inner); !ok {
				t.Fatalf("nested transaction lost context")
			}
			return nil
		})
	})

	if err != nil {
		t.Fatalf("nested transaction returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_RetriesSerializationFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)
	rw := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}

	mock.ExpectBeginTx(rw)
	mock.ExpectRollback()
	mock.ExpectBeginTx(rw)
	mock.ExpectCommit()

	calls := 0
	err = tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: sqlStateSerializationFailure}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinReadWrite returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run twice, ran %d times", calls)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	tm := NewTransactionManager(mock)
	rw := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
	for i := 0; i < DefaultMaxAttempts; i++ {
		mock.ExpectBeginTx(rw)
		mock.ExpectRollback()
	}

	deadlock := &pgconn.PgError{Code: sqlStateDeadlockDetected}
	err = tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		return deadlock
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != sqlStateDeadlockDetected {
		t.Fatalf("expected deadlock error after retries, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactionManager_NilManagerRunsDirectly(t *testing.T) {
	t.Parallel()

	var tm *TransactionManager
	ran := false
	if err := tm.WithinReadWrite(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("WithinReadWrite returned error: %v", err)
	}
	if !ran {
		t.Fatalf("expected fn to run without a transaction manager")
	}
}
