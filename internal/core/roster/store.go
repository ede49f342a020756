package roster

import (
	"fmt"
	"sync"
)

// Publisher は確定したスナップショットを受け取ります。永続化層が実装します。
// 渡されたスナップショットは以後変更されないため、そのまま保持して構いません。
type Publisher interface {
	Publish(snapshot *Snapshot)
}

type noopPublisher struct{}

func (noopPublisher) Publish(*Snapshot) {}

// Store はメモリ上の唯一のスナップショットを保持し、変更を直列化します。
// 変更は複製に対して適用され、整合性検証に成功した場合のみ差し替えられます。
type Store struct {
	mu        sync.Mutex
	current   *Snapshot
	publisher Publisher
}

// NewStore は Store を生成します。initial が nil の場合は空のスナップショットから開始します。
func NewStore(initial *Snapshot, publisher Publisher) *Store {
	if initial == nil {
		initial = &Snapshot{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Store{current: initial, publisher: publisher}
}

// WithinReadOnly は現在のスナップショットに対して fn を実行します。fn はスナップショットを変更してはいけません。
func (st *Store) WithinReadOnly(fn func(*Snapshot) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return fn(st.current)
}

// WithinReadWrite はスナップショットの複製に fn を適用し、変更があれば検証後に確定します。
// fn がエラーを返した場合や検証に失敗した場合、現在のスナップショットは変更されません。
func (st *Store) WithinReadWrite(fn func(*Snapshot) (bool, error)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.current.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := Validate(next); err != nil {
		return err
	}

	st.current = next
	st.publisher.Publish(next)
	return nil
}

// Replace はスナップショット全体を置き換えます。検証に失敗した場合は置き換えません。
func (st *Store) Replace(next *Snapshot) error {
	if next == nil {
		return fmt.Errorf("replace: %w", ErrCorruption)
	}
	owned := next.Clone()
	if err := Validate(owned); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = owned
	st.publisher.Publish(owned)
	return nil
}

// Snapshot は現在のスナップショットの複製を返します。
func (st *Store) Snapshot() *Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Clone()
}
