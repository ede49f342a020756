// Package filecache はスナップショットのローカルキャッシュをファイルとして保持します。
package filecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ogurasousui/site-roster/internal/core/persist"
)

// Cache は 1 ファイルにスナップショット文書を保存します。キーはファイル名の接尾辞として扱います。
type Cache struct {
	mu   sync.Mutex
	path string
}

var _ persist.DocumentStore = (*Cache)(nil)

// New は Cache を生成します。
func New(path string) *Cache {
	return &Cache{path: path}
}

// Fetch はキャッシュファイルを読み込みます。
func (c *Cache) Fetch(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := os.ReadFile(c.fileFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persist.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("filecache: read: %w", err)
	}
	if len(b) == 0 {
		return nil, persist.ErrDocumentNotFound
	}
	return b, nil
}

// Store は一時ファイルへ書き込んでから置き換えるため、途中で中断しても既存のキャッシュは壊れません。
func (c *Cache) Store(_ context.Context, key string, doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.fileFor(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filecache: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filecache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("filecache: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filecache: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filecache: close: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("filecache: rename: %w", err)
	}
	return nil
}

// fileFor は既定のキー以外をファイル名に付加して保存先を分けます。
func (c *Cache) fileFor(key string) string {
	if key == "" || key == "roster" {
		return c.path
	}
	ext := filepath.Ext(c.path)
	return c.path[:len(c.path)-len(ext)] + "." + filepath.Base(filepath.Clean("/"+key)) + ext
}
