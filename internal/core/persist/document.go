package persist

import (
	"context"
	"errors"
)

// ErrDocumentNotFound はキーに対応する文書が存在しないことを表します。
var ErrDocumentNotFound = errors.New("persist: document not found")

// DocumentStore はスナップショット全体を 1 つの文書として読み書きする保存先の抽象です。
type DocumentStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, doc []byte) error
}
