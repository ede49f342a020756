package persist

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

type memStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	writes   int
	fetchErr error
	storeErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]byte)}
}

func (m *memStore) Fetch(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (m *memStore) Store(_ context.Context, key string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.docs[key] = append([]byte(nil), doc...)
	return nil
}

func (m *memStore) setStoreErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErr = err
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) snapshot(t *testing.T, key string) *roster.Snapshot {
	t.Helper()
	m.mu.Lock()
	doc, ok := m.docs[key]
	m.mu.Unlock()
	require.True(t, ok, "document %s not stored", key)

	var snap roster.Snapshot
	require.NoError(t, json.Unmarshal(doc, &snap))
	return &snap
}

type countingMetrics struct {
	mu        sync.Mutex
	writes    map[string]int
	failures  map[string]int
	coalesced int
	skipped   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{writes: map[string]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) ObserveSyncWrite(target string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures[target]++
		return
	}
	m.writes[target]++
}

func (m *countingMetrics) IncSyncCoalesced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesced++
}

func (m *countingMetrics) IncSyncSkippedUnchanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

func (m *countingMetrics) skippedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skipped
}

func sampleSnapshot(name string) *roster.Snapshot {
	snap := Defaults()
	snap.Workers = append(snap.Workers, &roster.Worker{
		ID:           "w1",
		Code:         1,
		Name:         name,
		Availability: roster.AvailabilityWaiting,
		Status:       roster.WorkerStatusActive,
	})
	return snap
}
