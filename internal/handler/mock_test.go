package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/recordman/internal/export"
	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/record"
)

// --- モック定義 ---

type mockTableService struct {
	listFn func(ctx context.Context, sessionID, order, dir string) (*record.Table, error)
}

func (m *mockTableService) List(ctx context.Context, sessionID, order, dir string) (*record.Table, error) {
	if m.listFn != nil {
		return m.listFn(ctx, sessionID, order, dir)
	}
	return &record.Table{Order: model.DefaultSortOrder(), Records: []model.RecordWithMark{}}, nil
}

type mockStatsService struct {
	computeFn func(ctx context.Context, sessionID string) (*model.Stats, error)
}

func (m *mockStatsService) Compute(ctx context.Context, sessionID string) (*model.Stats, error) {
	if m.computeFn != nil {
		return m.computeFn(ctx, sessionID)
	}
	return &model.Stats{}, nil
}

type mockMarkService struct {
	setMarkedFn func(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error)
}

func (m *mockMarkService) SetMarked(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error) {
	if m.setMarkedFn != nil {
		return m.setMarkedFn(ctx, sessionID, recordID, marked)
	}
	return marked, nil
}

type mockImportService struct {
	runFn func(ctx context.Context) (*model.ImportResult, error)
	calls int
}

func (m *mockImportService) Run(ctx context.Context) (*model.ImportResult, error) {
	m.calls++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return &model.ImportResult{}, nil
}

type mockExportService struct {
	exportFn func(ctx context.Context, format string) (*export.File, error)
}

func (m *mockExportService) Export(ctx context.Context, format string) (*export.File, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, format)
	}
	return nil, model.NewNoDataError()
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type mockSessionStore struct {
	sessions map[string]*model.Session
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*model.Session)}
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionStore) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	if s, ok := m.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

type mockStatusRecorder struct {
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

// --- ヘルパー ---

const testSessionID = "test-session"

// testDeps はモックを組み込んだRouterDepsを返す。
// セッションストアにはtestSessionIDが登録済み。
func testDeps(t *testing.T) *RouterDeps {
	t.Helper()

	store := newMockSessionStore()
	store.sessions[testSessionID] = &model.Session{
		ID:        testSessionID,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	return &RouterDeps{
		HealthChecker: &mockHealthChecker{},
		SessionStore:  store,
		SessionConfig: middleware.SessionConfig{
			CookieName: "app_session",
			MaxAge:     time.Hour,
		},
		CSRFConfig:    middleware.CSRFConfig{Enabled: false},
		RateLimiter:   limiter,
		TableService:  &mockTableService{},
		StatsService:  &mockStatsService{},
		MarkService:   &mockMarkService{},
		ImportService: &mockImportService{},
		ExportService: &mockExportService{},
	}
}

// serve はセッションCookie付きでリクエストを実行する。
func serve(t *testing.T, deps *RouterDeps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: "app_session", Value: testSessionID})
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)
	return rec
}

var errDB = errors.New("db down")
