// Package natskv は NATS JetStream KeyValue バケットを文書ストアとして利用します。
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ogurasousui/site-roster/internal/core/persist"
)

const (
	defaultHistory     = 10
	defaultMaxRetries  = 3
	defaultDialTimeout = 5 * time.Second
)

// DocumentStore は KeyValue バケットの 1 キーにスナップショット文書を保存します。
type DocumentStore struct {
	kv jetstream.KeyValue
}

var _ persist.DocumentStore = (*DocumentStore)(nil)

// Open はバケットを作成または取得して DocumentStore を返します。
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*DocumentStore, error) {
	kv, err := ensureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "site roster snapshots",
		History:     defaultHistory,
	}, defaultMaxRetries)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{kv: kv}, nil
}

// Dial は url の NATS サーバーに接続し、bucket を開きます。返される close 関数で接続を閉じます。
func Dial(ctx context.Context, url, bucket string) (*DocumentStore, func(), error) {
	nc, err := nats.Connect(url,
		nats.Name("site-roster"),
		nats.Timeout(defaultDialTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("natskv: connect %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("natskv: jetstream: %w", err)
	}

	store, err := Open(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return store, func() { _ = nc.Drain() }, nil
}

// Fetch はキーに対応する最新の文書を取得します。
func (s *DocumentStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, persist.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("natskv: get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Store は文書を保存します。
func (s *DocumentStore) Store(ctx context.Context, key string, doc []byte) error {
	if _, err := s.kv.Put(ctx, key, doc); err != nil {
		return fmt.Errorf("natskv: put %s: %w", key, err)
	}
	return nil
}

// Revisions は保持されている過去の文書を古い順に返します。
func (s *DocumentStore) Revisions(ctx context.Context, key string) ([][]byte, error) {
	entries, err := s.kv.History(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, persist.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("natskv: history %s: %w", key, err)
	}
	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		if e.Operation() != jetstream.KeyValuePut {
			continue
		}
		out = append(out, e.Value())
	}
	return out, nil
}

// ensureBucket はバケットを作成し、既に存在する場合は開きます。
// 複数プロセスが同時に作成した場合の競合は指数バックオフで再試行します。
func ensureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, maxRetries int) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, cfg.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("open existing bucket: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("natskv: ensure bucket %s: %w", cfg.Bucket, ctx.Err())
		}

		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<attempt) * 10 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("natskv: ensure bucket %s after %d attempts: %w", cfg.Bucket, maxRetries, lastErr)
}
