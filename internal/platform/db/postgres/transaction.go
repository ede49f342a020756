package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultMaxAttempts は直列化失敗時にトランザクションを実行する最大回数です。
const DefaultMaxAttempts = 3

// 再試行対象の SQLSTATE です。
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type transactionContextKey struct{}

var txContextKey = transactionContextKey{}

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TransactionManager は pgx を用いたトランザクション制御を提供します。
// 読み書きトランザクションは SERIALIZABLE で実行し、直列化失敗とデッドロックは maxAttempts 回まで再実行します。
type TransactionManager struct {
	pool        txStarter
	maxAttempts int
}

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(pool txStarter) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool, maxAttempts: DefaultMaxAttempts}
}

// WithinReadOnly は読み取り専用トランザクションを開始し、fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithinReadWrite は SERIALIZABLE の読み書きトランザクションを開始し、fn を実行します。
// fn は再実行されることがあるため副作用はトランザクション内に閉じてください。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}, fn)
}

func (m *TransactionManager) within(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}

	// 外側のトランザクションに参加する場合、再試行は外側に任せる
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.attempt(ctx, opts, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("postgres: gave up after %d attempts: %w", m.maxAttempts, err)
}

func (m *TransactionManager) attempt(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(contextWithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	committed = true
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func contextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext はコンテキスト内にトランザクションが存在すればそれを返し、存在しなければ fallback を返します。
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return fallback
}

// Queryer は pgx.Tx および pgxpool.Pool と互換性のあるクエリ実行インターフェースです。
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
