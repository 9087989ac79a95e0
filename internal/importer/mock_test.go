package importer

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// --- テスト用モック ---

type mockSource struct {
	body  []byte
	err   error
	calls int
}

func (m *mockSource) Fetch(_ context.Context) ([]byte, error) {
	m.calls++
	return m.body, m.err
}

type mockCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	return nil
}

func (m *mockCache) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// mockStore はトランザクションを模したレコードストア。
// WithinTxはfnが失敗した場合に変更を破棄する。
type mockStore struct {
	records  map[string]*time.Time // "first|last" -> date
	failOn   string                // この名前の組でUpsertを失敗させる
	failErr  error
	txCalled int
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]*time.Time)}
}

func (m *mockStore) WithinTx(_ context.Context, fn func(repository.RecordUpserter) error) error {
	m.txCalled++
	staged := make(map[string]*time.Time, len(m.records))
	for k, v := range m.records {
		staged[k] = v
	}
	tx := &mockTx{store: m, staged: staged}
	if err := fn(tx); err != nil {
		return err
	}
	m.records = staged
	return nil
}

type mockTx struct {
	store  *mockStore
	staged map[string]*time.Time
}

func (t *mockTx) Upsert(_ context.Context, item model.ImportItem) (bool, error) {
	key := item.FirstName + "|" + item.LastName
	if t.store.failOn != "" && key == t.store.failOn {
		return false, t.store.failErr
	}
	_, exists := t.staged[key]
	t.staged[key] = item.Date
	return !exists, nil
}

type identityCleaner struct{}

func (identityCleaner) Clean(name string) string { return strings.TrimSpace(name) }

type mockRecorder struct {
	successes int
	failures  []string
	latencies int
	cacheHits int
	cacheMiss int
}

func (m *mockRecorder) RecordImportSuccess(_, _ int)       { m.successes++ }
func (m *mockRecorder) RecordImportFailure(code string)    { m.failures = append(m.failures, code) }
func (m *mockRecorder) RecordFetchLatency(_ time.Duration) { m.latencies++ }
func (m *mockRecorder) RecordCacheLookup(hit bool) {
	if hit {
		m.cacheHits++
	} else {
		m.cacheMiss++
	}
}
