package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFMiddleware_GETIssuesCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{Enabled: true})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = true
			if c.HttpOnly {
				t.Error("CSRF cookie must be readable by scripts")
			}
			if len(c.Value) != 64 {
				t.Errorf("token length = %d, want 64", len(c.Value))
			}
		}
	}
	if !found {
		t.Error("expected CSRF cookie to be set")
	}
}

func TestCSRFMiddleware_POST(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"一致", "token-abc", "token-abc", http.StatusOK},
		{"Cookieなし", "", "token-abc", http.StatusForbidden},
		{"ヘッダーなし", "token-abc", "", http.StatusForbidden},
		{"不一致", "token-abc", "token-xyz", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{Enabled: true})(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/mark", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Success || body.Message == "" {
					t.Errorf("body = %+v", body)
				}
			}
		})
	}
}

func TestCSRFMiddleware_Disabled(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{Enabled: false})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mark", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] != "existing-token" || body["success"] != true {
		t.Errorf("body = %v", body)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	if len(w.Result().Cookies()) != 1 {
		t.Error("a new token cookie should be issued")
	}
}

func TestCSRFMiddleware_FormToken(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{Enabled: true})(okHandler())

	for _, tt := range []struct {
		name string
		form string
		want int
	}{
		{"一致", "csrf_token=tok", http.StatusOK},
		{"不一致", "csrf_token=other", http.StatusForbidden},
		{"なし", "", http.StatusForbidden},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mark", strings.NewReader(tt.form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
