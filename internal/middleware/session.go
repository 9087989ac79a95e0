// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/recordman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// sessionHolderContextKey は外側のミドルウェアへセッションIDを返すためのキー。
var sessionHolderContextKey = contextKey("session_holder")

// sessionHolder は内側で解決されたセッションIDを外側のミドルウェアに伝える。
type sessionHolder struct {
	id string
}

func withSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, sessionHolderContextKey, h)
}

// SessionStore はセッションの検索と作成に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionStore interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	Create(ctx context.Context, session *model.Session) error
	Extend(ctx context.Context, id string, expiresAt time.Time) error
}

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieName   string
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware はCookieから匿名ブラウザセッションを解決するミドルウェアを返す。
// 有効なセッションがなければ新規に作成してCookieを発行する。
// 残り期限がMaxAgeの半分を切ったセッションは期限を延長し、Cookieを再発行する。
// セッションIDはリクエストコンテキストに注入される。
func NewSessionMiddleware(store SessionStore, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()

			if cookie, err := r.Cookie(config.CookieName); err == nil && cookie.Value != "" {
				session, err := store.FindByID(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to find session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				if session != nil {
					if session.ExpiresAt.Sub(now) < config.MaxAge/2 {
						extendSession(w, r, store, config, session.ID, now)
					}
					next.ServeHTTP(w, r.WithContext(ContextWithSessionID(r.Context(), session.ID)))
					return
				}
			}

			session := &model.Session{
				ID:        uuid.New().String(),
				ExpiresAt: now.Add(config.MaxAge),
				CreatedAt: now,
			}
			if err := store.Create(r.Context(), session); err != nil {
				slog.Error("failed to create session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			setSessionCookie(w, config, session.ID)

			next.ServeHTTP(w, r.WithContext(ContextWithSessionID(r.Context(), session.ID)))
		})
	}
}

// extendSession は期限を延長してCookieを再発行する。
// 延長に失敗しても現在のセッションは有効なので、リクエストは続行する。
func extendSession(w http.ResponseWriter, r *http.Request, store SessionStore, config SessionConfig, id string, now time.Time) {
	if err := store.Extend(r.Context(), id, now.Add(config.MaxAge)); err != nil {
		slog.WarnContext(r.Context(), "failed to extend session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	setSessionCookie(w, config, id)
}

func setSessionCookie(w http.ResponseWriter, config SessionConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieName,
		Value:    id,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   int(config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ値を持つ。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// sessionIDForLog は外側のミドルウェアがログに使うセッションIDを返す。
// 内側で解決されたholderの値を優先する。
func sessionIDForLog(ctx context.Context) (string, bool) {
	if h, ok := ctx.Value(sessionHolderContextKey).(*sessionHolder); ok && h.id != "" {
		return h.id, true
	}
	return SessionIDFromContext(ctx)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	if h, ok := ctx.Value(sessionHolderContextKey).(*sessionHolder); ok {
		h.id = sessionID
	}
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
