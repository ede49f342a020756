package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/site-roster/internal/core/persist"
	pgdb "github.com/ogurasousui/site-roster/internal/platform/db/postgres"
)

// DefaultHistoryLimit はキーごとに保持する履歴の件数です。
const DefaultHistoryLimit = 50

type transactor interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// DocumentRepository は PostgreSQL の jsonb 列にスナップショット文書を保存します。
// 保存のたびに履歴テーブルへも追記し、古い履歴は historyLimit 件を超えた分を削除します。
type DocumentRepository struct {
	pool         pgdb.Queryer
	tx           transactor
	historyLimit int
	now          func() time.Time
	newID        func() uuid.UUID
}

var _ persist.DocumentStore = (*DocumentRepository)(nil)

// NewDocumentRepository は DocumentRepository を生成します。historyLimit が 0 以下の場合は DefaultHistoryLimit を用います。
func NewDocumentRepository(pool pgdb.Queryer, tx transactor, historyLimit int) *DocumentRepository {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &DocumentRepository{
		pool:         pool,
		tx:           tx,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.New,
	}
}

// Fetch はキーに対応する最新の文書を取得します。
func (r *DocumentRepository) Fetch(ctx context.Context, key string) ([]byte, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT body
          FROM roster_documents
         WHERE key = $1
    `, key)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persist.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("postgres: fetch document %s: %w", key, err)
	}
	return body, nil
}

// Store は文書を保存し、履歴を追記します。
func (r *DocumentRepository) Store(ctx context.Context, key string, doc []byte) error {
	now := r.now()
	return r.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		exec := pgdb.QueryerFromContext(ctx, r.pool)

		if _, err := exec.Exec(ctx, `
        INSERT INTO roster_documents (key, body, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE
           SET body = EXCLUDED.body,
               updated_at = EXCLUDED.updated_at
    `, key, doc, now); err != nil {
			return fmt.Errorf("postgres: upsert document %s: %w", key, err)
		}

		if _, err := exec.Exec(ctx, `
        INSERT INTO roster_document_history (id, key, body, created_at)
        VALUES ($1, $2, $3, $4)
    `, r.newID(), key, doc, now); err != nil {
			return fmt.Errorf("postgres: append history %s: %w", key, err)
		}

		if _, err := exec.Exec(ctx, `
        DELETE FROM roster_document_history
         WHERE key = $1
           AND id NOT IN (
               SELECT id
                 FROM roster_document_history
                WHERE key = $1
                ORDER BY created_at DESC
                LIMIT $2
           )
    `, key, r.historyLimit); err != nil {
			return fmt.Errorf("postgres: prune history %s: %w", key, err)
		}
		return nil
	})
}

// HistoryEntry は保存履歴の 1 件です。
type HistoryEntry struct {
	ID        uuid.UUID
	Key       string
	Body      []byte
	CreatedAt time.Time
}

// History は新しい順に最大 limit 件の保存履歴を返します。
func (r *DocumentRepository) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = r.historyLimit
	}

	var entries []HistoryEntry
	err := r.tx.WithinReadOnly(ctx, func(ctx context.Context) error {
		exec := pgdb.QueryerFromContext(ctx, r.pool)
		rows, err := exec.Query(ctx, `
        SELECT id, key, body, created_at
          FROM roster_document_history
         WHERE key = $1
         ORDER BY created_at DESC
         LIMIT $2
    `, key, limit)
		if err != nil {
			return fmt.Errorf("postgres: query history %s: %w", key, err)
		}
		defer rows.Close()

		for rows.Next() {
			var e HistoryEntry
			if err := rows.Scan(&e.ID, &e.Key, &e.Body, &e.CreatedAt); err != nil {
				return fmt.Errorf("postgres: scan history: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
