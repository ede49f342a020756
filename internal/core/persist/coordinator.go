package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// DefaultDebounce は最後の変更から書き込みまでの待機時間です。
const DefaultDebounce = time.Second

// Metrics は永続化の結果を受け取ります。
type Metrics interface {
	ObserveSyncWrite(target string, elapsed time.Duration, err error)
	IncSyncCoalesced()
	IncSyncSkippedUnchanged()
}

type nopMetrics struct{}

func (nopMetrics) ObserveSyncWrite(string, time.Duration, error) {}
func (nopMetrics) IncSyncCoalesced()                             {}
func (nopMetrics) IncSyncSkippedUnchanged()                      {}

// Target は名前付きの書き込み先です。
type Target struct {
	Name  string
	Store DocumentStore
}

// CoordinatorConfig は Coordinator の設定です。
type CoordinatorConfig struct {
	Key          string
	Debounce     time.Duration
	WriteTimeout time.Duration
	Targets      []Target
	Logger       *slog.Logger
	Metrics      Metrics
}

// Coordinator は確定したスナップショットを受け取り、変更が落ち着いてから全書き込み先へ保存します。
// 連続した変更は最新の 1 件にまとめられ、途中のスナップショットは保存されません。
// 書き込みの失敗はログに残すのみで再試行せず、次の変更で改めて保存されます。
type Coordinator struct {
	key          string
	debounce     time.Duration
	writeTimeout time.Duration
	targets      []Target
	logger       *slog.Logger
	metrics      Metrics

	inbox chan *roster.Snapshot
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	flushCtx context.Context

	lastSum uint64
	hasSum  bool
}

var _ roster.Publisher = (*Coordinator)(nil)

// NewCoordinator は Coordinator を生成し、バックグラウンドの書き込みループを開始します。
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	c := &Coordinator{
		key:          cfg.Key,
		debounce:     cfg.Debounce,
		writeTimeout: cfg.WriteTimeout,
		targets:      cfg.Targets,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		inbox:        make(chan *roster.Snapshot, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		flushCtx:     context.Background(),
	}
	go c.run()
	return c
}

// Publish は保存対象のスナップショットを登録します。呼び出し側をブロックしません。
func (c *Coordinator) Publish(snap *roster.Snapshot) {
	select {
	case <-c.stop:
		return
	default:
	}

	for {
		select {
		case c.inbox <- snap:
			return
		default:
		}
		// 未処理の古いスナップショットは捨てて最新のものに置き換える
		select {
		case <-c.inbox:
			c.metrics.IncSyncCoalesced()
		default:
		}
	}
}

// Close は保留中のスナップショットを書き込んでからループを停止します。
func (c *Coordinator) Close(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.flushCtx = ctx
		close(c.stop)
	})
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	var pending *roster.Snapshot
	timer := time.NewTimer(c.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case snap := <-c.inbox:
			if pending != nil {
				c.metrics.IncSyncCoalesced()
			}
			pending = snap
			timer.Reset(c.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			c.write(context.Background(), pending)
			pending = nil
		case <-c.stop:
			timer.Stop()
			select {
			case snap := <-c.inbox:
				pending = snap
			default:
			}
			if pending != nil {
				c.write(c.flushCtx, pending)
			}
			return
		}
	}
}

func (c *Coordinator) write(ctx context.Context, snap *roster.Snapshot) {
	doc, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("snapshot encode failed", "key", c.key, "err", err)
		return
	}
	sum := xxh3.Hash(doc)
	if c.hasSum && sum == c.lastSum {
		c.metrics.IncSyncSkippedUnchanged()
		return
	}

	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, target := range c.targets {
		g.Go(func() error {
			start := time.Now()
			err := target.Store.Store(ctx, c.key, doc)
			c.metrics.ObserveSyncWrite(target.Name, time.Since(start), err)
			if err != nil {
				c.logger.Error("snapshot write failed", "target", target.Name, "key", c.key, "err", err)
				return fmt.Errorf("%s: %w", target.Name, err)
			}
			c.logger.Debug("snapshot written", "target", target.Name, "key", c.key, "bytes", len(doc))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// 書き込み先ごとの内容が揃っていない可能性がある
		c.hasSum = false
		return
	}
	c.lastSum = sum
	c.hasSum = true
}
