package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

func TestPrometheus_SyncMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "")
	require.NoError(t, err)

	p.ObserveSyncWrite("remote", 20*time.Millisecond, nil)
	p.ObserveSyncWrite("remote", 5*time.Millisecond, errors.New("boom"))
	p.ObserveSyncWrite("cache", time.Millisecond, nil)
	p.IncSyncCoalesced()
	p.IncSyncCoalesced()
	p.IncSyncSkippedUnchanged()

	require.Equal(t, 1.0, testutil.ToFloat64(p.syncWrites.WithLabelValues("remote", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.syncWrites.WithLabelValues("remote", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.syncWrites.WithLabelValues("cache", "success")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.syncCoalesced))
	require.Equal(t, 1.0, testutil.ToFloat64(p.syncSkipped))
	require.Equal(t, 2, testutil.CollectAndCount(p.syncLatency))
}

func TestPrometheus_MutationMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "roster")
	require.NoError(t, err)

	p.ObserveMutation("assign", roster.KindUnknown, nil)
	p.ObserveMutation("assign", roster.KindForbidden, roster.ErrForbidden)

	require.Equal(t, 1.0, testutil.ToFloat64(p.mutations.WithLabelValues("assign", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.mutations.WithLabelValues("assign", "forbidden")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["roster_mutations_total"])
	require.True(t, names["roster_sync_coalesced_total"])
}

func TestNewPrometheus_RegisterTwice(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewPrometheus(reg, "roster")
	require.NoError(t, err)
	second, err := NewPrometheus(reg, "roster")
	require.NoError(t, err)

	second.IncSyncCoalesced()
	require.Equal(t, 1.0, testutil.ToFloat64(first.syncCoalesced))
}
