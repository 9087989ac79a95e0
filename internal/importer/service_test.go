package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/recordman/internal/model"
)

func TestService_Run_InsertsAndUpdates(t *testing.T) {
	store := newMockStore()
	store.records["Jan|Novák"] = nil
	rec := &mockRecorder{}
	src := &mockSource{body: []byte(`[
		{"jmeno":"Jan","prijmeni":"Novák","date":"2024-01-01"},
		{"jmeno":"Eva","prijmeni":"Svobodová","date":"2024-02-01"},
		{"jmeno":"","prijmeni":"Skip"},
		{"jmeno":"Petr"}
	]`)}

	result, err := NewService(src, store, identityCleaner{}, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Imported != 1 || result.Updated != 1 {
		t.Errorf("result = %+v, want {Imported:1 Updated:1}", *result)
	}
	if len(store.records) != 2 {
		t.Errorf("records = %d, want 2", len(store.records))
	}
	if store.records["Jan|Novák"] == nil {
		t.Error("existing record should have its date updated")
	}
	if rec.successes != 1 {
		t.Errorf("successes = %d, want 1", rec.successes)
	}
}

// TestService_Run_SameBatchDuplicates は同じ名前の組が2回現れた場合に1件作成・1件更新となることを検証する。
func TestService_Run_SameBatchDuplicates(t *testing.T) {
	store := newMockStore()
	src := &mockSource{body: []byte(`[
		{"jmeno":"Jan","prijmeni":"Novák"},
		{"jmeno":" Jan ","prijmeni":"Novák "}
	]`)}

	result, err := NewService(src, store, identityCleaner{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Imported != 1 || result.Updated != 1 {
		t.Errorf("result = %+v, want {Imported:1 Updated:1}", *result)
	}
}

func TestService_Run_ValidationBeforeWrite(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"配列でない", `{"records":[]}`, model.ErrCodeInvalidFormat},
		{"空配列", `[]`, model.ErrCodeEmptyPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			rec := &mockRecorder{}
			_, err := NewService(&mockSource{body: []byte(tt.body)}, store, identityCleaner{}, rec).Run(context.Background())
			if !model.IsCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
			if store.txCalled != 0 {
				t.Error("no transaction should be opened for an invalid payload")
			}
			if len(rec.failures) != 1 || rec.failures[0] != tt.wantCode {
				t.Errorf("failures = %v, want [%s]", rec.failures, tt.wantCode)
			}
		})
	}
}

func TestService_Run_FetchError(t *testing.T) {
	fetchErr := model.NewFetchError("request failed", errors.New("timeout"))
	store := newMockStore()

	_, err := NewService(&mockSource{err: fetchErr}, store, identityCleaner{}, nil).Run(context.Background())
	if !model.IsCode(err, model.ErrCodeFetchError) {
		t.Errorf("err = %v, want FETCH_ERROR", err)
	}
	if store.txCalled != 0 {
		t.Error("no transaction should be opened on fetch failure")
	}
}

// TestService_Run_RollsBackWholeBatch は途中の失敗で先行する変更も取り消されることを検証する。
func TestService_Run_RollsBackWholeBatch(t *testing.T) {
	storageErr := errors.New("disk full")
	store := newMockStore()
	store.records["Old|Record"] = nil
	store.failOn = "B|Two"
	store.failErr = storageErr
	src := &mockSource{body: []byte(`[
		{"jmeno":"A","prijmeni":"One"},
		{"jmeno":"B","prijmeni":"Two"},
		{"jmeno":"C","prijmeni":"Three"}
	]`)}

	result, err := NewService(src, store, identityCleaner{}, nil).Run(context.Background())
	if !model.IsCode(err, model.ErrCodeImportFailed) {
		t.Fatalf("err = %v, want IMPORT_FAILED", err)
	}
	if !errors.Is(err, storageErr) {
		t.Error("IMPORT_FAILED should wrap the storage error")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if len(store.records) != 1 {
		t.Errorf("records = %d, want 1 (unchanged)", len(store.records))
	}
	if _, ok := store.records["A|One"]; ok {
		t.Error("A One should have been rolled back")
	}
}

func TestService_Run_AllItemsSkipped(t *testing.T) {
	store := newMockStore()
	src := &mockSource{body: []byte(`[{"jmeno":1},{"x":"y"}]`)}

	result, err := NewService(src, store, identityCleaner{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Imported != 0 || result.Updated != 0 {
		t.Errorf("result = %+v, want zero counts", *result)
	}
}
