package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/record"
)

func sampleTable() *record.Table {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &record.Table{
		Order: model.SortOrder{Column: model.SortColumnLastName, Direction: model.SortAsc},
		Records: []model.RecordWithMark{
			{Record: model.Record{ID: 1, FirstName: "Jan", LastName: "Novák", Date: &date}, IsMarked: true},
			{Record: model.Record{ID: 2, FirstName: "Eva", LastName: "Svobodová"}},
		},
	}
}

func TestIndex_RendersTableWithSuccessFlash(t *testing.T) {
	deps := testDeps(t)
	var gotOrder, gotDir, gotSession string
	deps.TableService = &mockTableService{
		listFn: func(ctx context.Context, sessionID, order, dir string) (*record.Table, error) {
			gotSession, gotOrder, gotDir = sessionID, order, dir
			return sampleTable(), nil
		},
	}
	deps.StatsService = &mockStatsService{
		computeFn: func(ctx context.Context, sessionID string) (*model.Stats, error) {
			return &model.Stats{Total: 2, Marked: 1, Percentage: 50}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/?order=lastName&dir=asc&success=import", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotSession != testSessionID || gotOrder != "lastName" || gotDir != "asc" {
		t.Errorf("List called with (%q, %q, %q)", gotSession, gotOrder, gotDir)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{importSuccessMessage, "Novák", "Svobodová", `data-id="1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
}

func TestIndex_NoFlashWithoutSuccessParam(t *testing.T) {
	deps := testDeps(t)
	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), importSuccessMessage) {
		t.Error("success flash should not be shown")
	}
}

func TestIndex_ServiceErrorRendersErrorPage(t *testing.T) {
	deps := testDeps(t)
	deps.TableService = &mockTableService{
		listFn: func(ctx context.Context, sessionID, order, dir string) (*record.Table, error) {
			return nil, errDB
		},
	}

	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Error("internal error detail must not leak into the page")
	}
}

func TestIndex_CreatesSessionWhenCookieMissing(t *testing.T) {
	deps := testDeps(t)
	store := deps.SessionStore.(*mockSessionStore)

	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.sessions) != 2 {
		t.Errorf("sessions = %d, want 2 (existing + new)", len(store.sessions))
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "app_session" && c.Value != "" && c.Value != testSessionID {
			found = true
		}
	}
	if !found {
		t.Error("new session cookie should be set")
	}
}

func TestListRecords_ReturnsJSON(t *testing.T) {
	deps := testDeps(t)
	deps.TableService = &mockTableService{
		listFn: func(ctx context.Context, sessionID, order, dir string) (*record.Table, error) {
			return sampleTable(), nil
		},
	}

	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/api/records?order=lastName&dir=ASC", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp recordListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.OrderBy != "lastName" || resp.Direction != "ASC" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Total != 2 || resp.Marked != 1 {
		t.Errorf("total/marked = %d/%d, want 2/1", resp.Total, resp.Marked)
	}
	first := resp.Records[0]
	if first.FullName != "Jan Novák" || first.Date == nil || *first.Date != "2024-03-01" || !first.IsMarked {
		t.Errorf("records[0] = %+v", first)
	}
	if resp.Records[1].Date != nil {
		t.Errorf("records[1].date = %v, want null", *resp.Records[1].Date)
	}
}

func TestStats_ReturnsCounts(t *testing.T) {
	deps := testDeps(t)
	deps.StatsService = &mockStatsService{
		computeFn: func(ctx context.Context, sessionID string) (*model.Stats, error) {
			return &model.Stats{Total: 3, Marked: 1, Percentage: 33}, nil
		},
	}

	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := statsResponse{Success: true, Total: 3, Marked: 1, Percentage: 33}
	if resp != want {
		t.Errorf("resp = %+v, want %+v", resp, want)
	}
}

func TestStats_ErrorReturns500(t *testing.T) {
	deps := testDeps(t)
	deps.StatsService = &mockStatsService{
		computeFn: func(ctx context.Context, sessionID string) (*model.Stats, error) {
			return nil, errDB
		},
	}

	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp map[string]any
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["success"] != false || resp["message"] != "Error fetching statistics" {
		t.Errorf("resp = %v", resp)
	}
}

func newMarkRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mark", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMark_Success(t *testing.T) {
	deps := testDeps(t)
	var gotSession string
	var gotID int64
	var gotMarked bool
	deps.MarkService = &mockMarkService{
		setMarkedFn: func(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error) {
			gotSession, gotID, gotMarked = sessionID, recordID, marked
			return marked, nil
		},
	}

	rec := serve(t, deps, newMarkRequest(`{"id":5,"marked":false}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	if gotSession != testSessionID || gotID != 5 || gotMarked {
		t.Errorf("SetMarked called with (%q, %d, %v)", gotSession, gotID, gotMarked)
	}
	var resp markResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Marked || resp.Timestamp == 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMark_BadRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"missing id", `{"marked":true}`, "Missing required parameters: id and marked"},
		{"missing marked", `{"id":3}`, "Missing required parameters: id and marked"},
		{"empty object", `{}`, "Missing required parameters: id and marked"},
		{"non-integer id", `{"id":"abc","marked":true}`, "Invalid record ID"},
		{"malformed json", `{"id":`, "Invalid request body"},
		{"unknown field", `{"id":1,"marked":true,"extra":1}`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(t)
			called := false
			deps.MarkService = &mockMarkService{
				setMarkedFn: func(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error) {
					called = true
					return marked, nil
				},
			}

			rec := serve(t, deps, newMarkRequest(tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if called {
				t.Error("service should not be called")
			}
			var resp markErrorResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Success || resp.Message != tt.wantMessage || resp.Timestamp == 0 {
				t.Errorf("resp = %+v, want message %q", resp, tt.wantMessage)
			}
		})
	}
}

func TestMark_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid id", model.NewInvalidRecordIDError(), http.StatusBadRequest},
		{"not found", model.NewRecordNotFoundError(99), http.StatusBadRequest},
		{"internal", errDB, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(t)
			deps.MarkService = &mockMarkService{
				setMarkedFn: func(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error) {
					return false, tt.err
				},
			}

			rec := serve(t, deps, newMarkRequest(`{"id":99,"marked":true}`))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if strings.Contains(rec.Body.String(), "db down") {
				t.Error("internal error detail must not leak")
			}
		})
	}
}

func TestMark_RejectsNonPost(t *testing.T) {
	deps := testDeps(t)

	rec := serve(t, deps, httptest.NewRequest(http.MethodGet, "/mark", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}
	var resp markErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Message != "Method not allowed - POST required" {
		t.Errorf("message = %q", resp.Message)
	}
}
