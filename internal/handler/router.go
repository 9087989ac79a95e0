package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/recordman/internal/metrics"
	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionStore      middleware.SessionStore
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nilの場合は無効）
	StatusRecorder middleware.StatusRecorder
	Gatherer       prometheus.Gatherer

	// レコード
	TableService TableServiceInterface
	StatsService StatsServiceInterface
	MarkService  MarkServiceInterface

	// 取り込み・出力
	ImportService ImportServiceInterface
	ExportService ExportServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → StatusMetrics → CORS
//	  → RateLimit(General) → [RateLimit(Import)] → Session → CSRF
//
// /health と /metrics はセッション系ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	recordHandler := NewRecordHandler(deps.TableService, deps.StatsService, deps.MarkService)
	importHandler := NewImportHandler(deps.ImportService)
	exportHandler := NewExportHandler(deps.ExportService)

	// --- セッション不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- セッションが必要なルート ---
	// レート制限はクライアントアドレス単位で、セッション作成より前に適用する。
	// ミドルウェアスタック: RateLimit(General) → [RateLimit(Import)] → Session → CSRF
	withSession := func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionStore, deps.SessionConfig))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Group(func(r chi.Router) {
			withSession(r)

			r.Get("/", recordHandler.Index)
			// POST以外はハンドラー内で405を返す
			r.HandleFunc("/mark", recordHandler.Mark)
			r.Get("/export", exportHandler.Export)
			r.Get("/api/stats", recordHandler.Stats)
			r.Get("/api/records", recordHandler.ListRecords)
			r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		})

		// 取り込みは専用レート制限を追加する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.ImportMiddleware())
			withSession(r)

			r.Get("/download", importHandler.Download)
			r.Post("/api/import", importHandler.Import)
		})
	})

	return r
}

// notFound は/api配下にはJSON、それ以外にはHTMLの404を返す。
func notFound(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		middleware.WriteJSON(w, http.StatusNotFound, middleware.ErrorResponseBody{
			Message:  "API endpoint not found",
			Code:     model.ErrCodeNotFound,
			Category: "system",
			Action:   "URLを確認してください。",
		})
		return
	}

	renderPage(w, r, http.StatusNotFound, view.ErrorPage(view.ErrorPageData{
		Title:   "Page not found",
		Message: "The requested page does not exist.",
		Action:  "URLを確認してください。",
		Code:    model.ErrCodeNotFound,
	}))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusMethodNotAllowed, middleware.ErrorResponseBody{
		Message:  "Method not allowed",
		Code:     model.ErrCodeInvalidInput,
		Category: "validation",
		Action:   "HTTPメソッドを確認してください。",
	})
}
