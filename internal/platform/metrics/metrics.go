// Package metrics は同期処理と変更操作の計測を提供します。
package metrics

import (
	"time"

	"github.com/ogurasousui/site-roster/internal/core/persist"
	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// Collector は永続化と変更操作の両方の計測を受け取ります。
type Collector interface {
	persist.Metrics
	roster.MutationObserver
}

// Nop はすべての計測を破棄します。
type Nop struct{}

var _ Collector = Nop{}

// NewNop は Nop を返します。
func NewNop() Nop {
	return Nop{}
}

func (Nop) ObserveSyncWrite(string, time.Duration, error) {}
func (Nop) IncSyncCoalesced()                             {}
func (Nop) IncSyncSkippedUnchanged()                      {}
func (Nop) ObserveMutation(string, roster.Kind, error)    {}
