package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger        *slog.Logger
	SessionFinder middleware.SessionFinder
	RateLimiter   *middleware.RateLimiter
	CSRF          middleware.CSRFConfig

	// 監視
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer // nilの場合は/metricsを公開しない
	HealthChecker   HealthChecker       // nilの場合はDB疎通を確認しない

	// 認証
	AuthFlow AuthSubmitter
	Sessions SessionEnder
	Cookies  CookieConfig

	// 画面状態
	Views ViewRegistry
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CSRF → Session → RateLimit(General)
//
// カタログを呼び出す操作（検索・捕獲候補の取得）にはRateLimit(Catalog)を追加する。
// /health、/metrics、/static/* はCSRF・セッションの外に配置する。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	render, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthFlow, deps.Sessions, deps.Views, deps.Cookies, render)
	cardHandler := NewCardHandler(deps.Views, deps.Sessions, deps.Cookies, render)
	tableHandler := NewTableHandler(deps.Views, deps.Sessions, deps.Cookies, render)

	// --- 監視・静的ファイル ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", authHandler.Page)
			r.Post("/auth/submit", authHandler.Submit)
			r.Post("/auth/logout", authHandler.Logout)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			catalogLimit := deps.RateLimiter.CatalogMiddleware()

			// カード形式
			r.Route(cardsPath, func(r chi.Router) {
				r.Get("/", cardHandler.Page)
				r.With(catalogLimit).Post("/search", cardHandler.Search)
				r.Post("/type", cardHandler.SetType)
				r.Post("/detail", cardHandler.Detail)
				r.Post("/catch/{id}", cardHandler.Catch)
				r.Post("/release/confirm", cardHandler.ConfirmRelease)
				r.Post("/release/{id}", cardHandler.OpenRelease)
				r.Post("/modal/close", cardHandler.CloseModal)

				// 表形式
				r.Route("/pokemons", func(r chi.Router) {
					r.Get("/", tableHandler.Page)
					r.Post("/filter", tableHandler.Filter)
					r.Post("/sort", tableHandler.Sort)
					r.Post("/page", tableHandler.Paginate)
					r.Post("/page-size", tableHandler.PageSize)
					r.Post("/detail/{id}", tableHandler.Detail)
					r.With(catalogLimit).Post("/catch/open", tableHandler.OpenCatch)
					r.Post("/catch/select", tableHandler.SelectCandidate)
					r.Post("/catch/confirm", tableHandler.ConfirmCatch)
					r.Post("/manual", tableHandler.Manual)
					r.Post("/release/confirm", tableHandler.ConfirmRelease)
					r.Post("/release/{id}", tableHandler.OpenRelease)
					r.Post("/modal/close", tableHandler.CloseModal)
				})
			})
		})
	})

	return r, nil
}
