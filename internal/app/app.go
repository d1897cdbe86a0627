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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pokedex/internal/auth"
	"github.com/hitoshi/pokedex/internal/backend"
	"github.com/hitoshi/pokedex/internal/catalog"
	"github.com/hitoshi/pokedex/internal/config"
	"github.com/hitoshi/pokedex/internal/database"
	"github.com/hitoshi/pokedex/internal/handler"
	"github.com/hitoshi/pokedex/internal/logger"
	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/middleware"
	"github.com/hitoshi/pokedex/internal/repository"
	"github.com/hitoshi/pokedex/internal/security"
	"github.com/hitoshi/pokedex/internal/session"
	"github.com/hitoshi/pokedex/internal/view"
	"github.com/hitoshi/pokedex/internal/worker/cleanup"
)

// errDatabaseRequired はDATABASE_URLが必須のコマンドで未設定の場合のエラー。
var errDatabaseRequired = errors.New("DATABASE_URL is required for this command")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd.SkipsInit() {
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
	if cmd.RequiresDatabase() && !cfg.UsesDatabase() {
		return fmt.Errorf("%s: %w", cmd, errDatabaseRequired)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("backend_url", cfg.BackendURL),
		slog.String("catalog_url", cfg.CatalogURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係を保持する。
type server struct {
	handler http.Handler
	db      *sql.DB
	limiter *middleware.RateLimiter
	views   *view.Registry
	cleanup *cleanup.SessionCleanupJob // メモリストアで有効期限がある場合のみ
}

// close はDB接続とバックグラウンド処理を停止する。
func (s *server) close() {
	s.limiter.Stop()
	if s.db != nil {
		s.db.Close()
	}
}

// buildServer は設定から全依存関係をワイヤリングする。
// DATABASE_URLが空の場合はメモリ上のセッションストアを使用する。
func buildServer(cfg *config.Config) (*server, error) {
	srv := &server{}
	deps := &handler.RouterDeps{Logger: slog.Default()}

	// 1. セッションストア
	var sessionRepo repository.SessionRepository
	if cfg.UsesDatabase() {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(context.Background(), db, cfg.HTTPTimeout); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database connection established")

		srv.db = db
		sessionRepo = repository.NewPostgresSessionRepo(db)
		deps.HealthChecker = db
	} else {
		slog.Warn("DATABASE_URL is empty; sessions are kept in memory")
		memRepo := repository.NewMemorySessionRepo()
		sessionRepo = memRepo
		if cfg.SessionMaxAge > 0 {
			srv.cleanup = cleanup.NewSessionCleanupJob(memRepo, slog.Default())
		}
	}
	sessions := session.NewManager(sessionRepo, time.Duration(cfg.SessionMaxAge)*time.Second)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 上流クライアント
	backendClient := backend.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout}, slog.Default(), cfg.BackendURL, collector,
	)

	catalogOpts := []catalog.Option{
		catalog.WithRateLimit(cfg.CatalogRateLimit),
		catalog.WithMaxConcurrent(cfg.CatalogMaxConcurrent),
		catalog.WithSearchLimit(cfg.SearchLimit),
		catalog.WithMetrics(collector),
	}
	catalogHTTP := &http.Client{Timeout: cfg.HTTPTimeout}
	if !cfg.CatalogAllowPrivate {
		guard := security.NewSSRFGuard()
		catalogHTTP = guard.NewSafeClient(cfg.HTTPTimeout)
		catalogOpts = append(catalogOpts, catalog.WithURLValidator(guard.ValidateURL))
	}
	catalogClient := catalog.NewClient(catalogHTTP, slog.Default(), cfg.CatalogURL, catalogOpts...)

	// 4. 画面状態
	srv.views = view.NewRegistry(view.Deps{
		Collection:     backendClient,
		Catalog:        catalogClient,
		Metrics:        collector,
		SampleSize:     cfg.SampleSize,
		SearchDebounce: cfg.SearchDebounce,
	}, cfg.ViewIdleTTL)

	// 5. ルーター
	srv.limiter = middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCatalog),
	)

	deps.SessionFinder = sessions
	deps.RateLimiter = srv.limiter
	deps.CSRF = middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain}
	deps.Metrics = collector
	deps.MetricsGatherer = registry
	deps.AuthFlow = auth.NewFlow(backendClient, sessions)
	deps.Sessions = sessions
	deps.Cookies = handler.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	}
	deps.Views = srv.views

	router, err := handler.NewRouter(deps)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	srv.handler = router

	return srv, nil
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.views.Run(ctx, time.Minute)
	if srv.cleanup != nil {
		go srv.cleanup.Start(ctx, time.Hour)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, cfg.HTTPTimeout); err != nil {
		return err
	}

	slog.Info("database connection established (worker)")

	job := cleanup.NewSessionCleanupJob(cleanup.NewSQLPurger(db), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanup.DefaultInterval),
		slog.Int("session_max_age", cfg.SessionMaxAge),
	)

	job.Start(ctx, cleanup.DefaultInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はセッションスキーマの未適用マイグレーションを順番に適用し、
// 適用後のスキーマバージョンを報告する。
func runMigrate(cfg *config.Config) error {
	latest, err := database.LatestVersion()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("latest_version", uint64(latest)),
	)

	res, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if res.To != latest {
		return fmt.Errorf("migration failed: schema version %d, want %d", res.To, latest)
	}

	if res.Applied() {
		slog.Info("database migrations completed",
			slog.Uint64("from_version", uint64(res.From)),
			slog.Uint64("schema_version", uint64(res.To)),
		)
	} else {
		slog.Info("database schema already up to date",
			slog.Uint64("schema_version", uint64(res.To)),
		)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
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
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
