package mark

import (
	"context"
	"time"

	"github.com/hitoshi/recordman/internal/model"
)

// --- テスト用モック ---

type mockRecordRepo struct {
	records map[int64]*model.Record
	countFn func(ctx context.Context) (int, error)
	findErr error
}

func newMockRecordRepo(ids ...int64) *mockRecordRepo {
	m := &mockRecordRepo{records: make(map[int64]*model.Record)}
	for _, id := range ids {
		m.records[id] = &model.Record{ID: id, FirstName: "Jan", LastName: "Novak"}
	}
	return m
}

func (m *mockRecordRepo) FindByID(_ context.Context, id int64) (*model.Record, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.records[id], nil
}

func (m *mockRecordRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return len(m.records), nil
}

func (m *mockRecordRepo) ListWithMarks(_ context.Context, _ string, _ model.SortOrder) ([]model.RecordWithMark, error) {
	return nil, nil
}

func (m *mockRecordRepo) ListForExport(_ context.Context) ([]model.Record, error) {
	return nil, nil
}

type mockMarkRepo struct {
	marks     map[string]map[int64]time.Time // sessionID -> recordID -> markedAt
	insertErr error
	countErr  error
}

func newMockMarkRepo() *mockMarkRepo {
	return &mockMarkRepo{marks: make(map[string]map[int64]time.Time)}
}

func (m *mockMarkRepo) Insert(_ context.Context, recordID int64, sessionID string, markedAt time.Time) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.marks[sessionID] == nil {
		m.marks[sessionID] = make(map[int64]time.Time)
	}
	if _, ok := m.marks[sessionID][recordID]; !ok {
		m.marks[sessionID][recordID] = markedAt
	}
	return nil
}

func (m *mockMarkRepo) Delete(_ context.Context, recordID int64, sessionID string) error {
	delete(m.marks[sessionID], recordID)
	return nil
}

func (m *mockMarkRepo) CountDistinctBySession(_ context.Context, sessionID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.marks[sessionID]), nil
}

type mockRecorder struct {
	toggles []bool
}

func (m *mockRecorder) RecordMarkToggle(marked bool) {
	m.toggles = append(m.toggles, marked)
}
