// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/recordman/internal/config"
	"github.com/hitoshi/recordman/internal/database"
	"github.com/hitoshi/recordman/internal/export"
	"github.com/hitoshi/recordman/internal/handler"
	"github.com/hitoshi/recordman/internal/importer"
	"github.com/hitoshi/recordman/internal/logger"
	"github.com/hitoshi/recordman/internal/mark"
	"github.com/hitoshi/recordman/internal/metrics"
	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/record"
	"github.com/hitoshi/recordman/internal/repository"
	"github.com/hitoshi/recordman/internal/security"
	"github.com/hitoshi/recordman/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandImport:
		return runImport(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newMetrics はGo/プロセスのコレクタを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newImportService はインポート元・再試行・キャッシュ・UPSERT先を組み立てる。
// IMPORT_CACHE_TTLが0の場合はキャッシュを経由しない。
func newImportService(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *importer.Service {
	guard := security.NewSourceGuard(cfg.ImportAllowPrivate)
	httpSource := importer.NewHTTPSource(
		cfg.ImportSourceURL, guard, cfg.ImportTimeout, cfg.ImportMaxSize, collector,
	)

	var source importer.Source = importer.NewRetryingSource(httpSource, cfg.ImportRetries)
	if cfg.ImportCacheTTL > 0 {
		source = importer.NewCachedSource(
			source,
			repository.NewPostgresCacheRepo(db),
			importer.CacheKey(cfg.ImportSourceURL),
			cfg.ImportCacheTTL,
			collector,
		)
	}

	return importer.NewService(
		source,
		repository.NewPostgresRecordRepo(db),
		security.NewNameSanitizer(),
		collector,
	)
}

// runServe はHTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	recordRepo := repository.NewPostgresRecordRepo(db)
	markRepo := repository.NewPostgresMarkRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクス
	reg, collector := newMetrics()

	// 4. ドメインサービスの初期化
	markService := mark.NewMarkService(recordRepo, markRepo, collector)
	statsService := mark.NewStatsService(recordRepo, markRepo)
	tableService := record.NewTableService(recordRepo)
	importService := newImportService(cfg, db, collector)
	exporter := export.NewExporter(recordRepo, collector)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitImport),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:        slog.Default(),
		HealthChecker: db,
		SessionStore:  sessionRepo,
		SessionConfig: middleware.SessionConfig{
			CookieName:   cfg.SessionCookieName,
			MaxAge:       time.Duration(cfg.SessionMaxAge) * time.Second,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRFConfig: middleware.CSRFConfig{
			Enabled:      cfg.CSRFEnabled,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		StatusRecorder: collector,
		Gatherer:       reg,

		TableService: tableService,
		StatsService: statsService,
		MarkService:  markService,

		ImportService: importService,
		ExportService: exporter,
	}

	return serveUntilSignal(&http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: importWriteTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	})
}

// importWriteTimeout は再試行を含む取り込みが収まる書き込みタイムアウトを返す。
func importWriteTimeout(cfg *config.Config) time.Duration {
	d := 15 * time.Second
	for attempt := 0; attempt < cfg.ImportRetries; attempt++ {
		d += cfg.ImportTimeout
		if attempt > 0 {
			d += importer.CalculateBackoff(attempt - 1)
		}
	}
	return d
}

// serveUntilSignal はHTTPサーバーを起動し、シグナル受信でグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}

	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションとインポートキャッシュをSESSION_CLEANUP_INTERVAL毎に削除する。
// /health と /metrics をSERVER_PORTで公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDB(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetrics()

	cleanupJob := cleanup.NewCleanupJob([]cleanup.Target{
		{Kind: "sessions", Deleter: repository.NewPostgresSessionRepo(db)},
		{Kind: "import_cache", Deleter: repository.NewPostgresCacheRepo(db)},
	}, collector, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobDone := make(chan struct{})
	go func() {
		defer close(jobDone)
		slog.Info("worker starting",
			slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		)
		cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	}()

	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(db))
	r.Handle("/metrics", metrics.Handler(reg))

	err = serveUntilSignal(&http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	cancel()
	<-jobDone
	slog.Info("worker stopped gracefully")
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runImport はリモートデータソースからの取り込みを1回実行する。
func runImport(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newMetrics()
	result, err := newImportService(cfg, db, collector).Run(ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	slog.Info("import completed",
		slog.String("source", cfg.ImportSourceURL),
		slog.Int("imported", result.Imported),
		slog.Int("updated", result.Updated),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
