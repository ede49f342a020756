package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Prometheus は Prometheus へ計測値を公開する Collector です。
type Prometheus struct {
	syncWrites    *prometheus.CounterVec
	syncLatency   *prometheus.HistogramVec
	syncCoalesced prometheus.Counter
	syncSkipped   prometheus.Counter
	mutations     *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus は計測器を生成して reg に登録します。reg が nil の場合は既定のレジストリを用います。
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "roster"
	}

	p := &Prometheus{
		syncWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "writes_total",
			Help:      "Snapshot writes by target and result (success,failure).",
		}, []string{"target", "result"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "write_seconds",
			Help:      "Latency of snapshot writes in seconds by target.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"target"}),
		syncCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "coalesced_total",
			Help:      "Snapshots superseded by a newer one before being written.",
		}),
		syncSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "skipped_unchanged_total",
			Help:      "Writes skipped because the snapshot was identical to the last written one.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Roster mutations by operation and result (ok or error kind).",
		}, []string{"op", "result"}),
	}

	var err error
	if p.syncWrites, err = register(reg, p.syncWrites); err != nil {
		return nil, err
	}
	if p.syncLatency, err = register(reg, p.syncLatency); err != nil {
		return nil, err
	}
	if p.syncCoalesced, err = register(reg, p.syncCoalesced); err != nil {
		return nil, err
	}
	if p.syncSkipped, err = register(reg, p.syncSkipped); err != nil {
		return nil, err
	}
	if p.mutations, err = register(reg, p.mutations); err != nil {
		return nil, err
	}
	return p, nil
}

// register は c を登録します。同じ記述子が登録済みであれば既存の計測器を返します。
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// ObserveSyncWrite は書き込み 1 回の結果を記録します。
func (p *Prometheus) ObserveSyncWrite(target string, elapsed time.Duration, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	p.syncWrites.WithLabelValues(target, result).Inc()
	p.syncLatency.WithLabelValues(target).Observe(elapsed.Seconds())
}

func (p *Prometheus) IncSyncCoalesced() {
	p.syncCoalesced.Inc()
}

func (p *Prometheus) IncSyncSkippedUnchanged() {
	p.syncSkipped.Inc()
}

// ObserveMutation は変更操作の結果を記録します。成功は "ok"、失敗はエラー分類名になります。
func (p *Prometheus) ObserveMutation(op string, kind roster.Kind, err error) {
	result := "ok"
	if err != nil {
		result = kind.String()
	}
	p.mutations.WithLabelValues(op, result).Inc()
}
