package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	SubscriptionService SubscriptionServiceInterface
	NewsletterService   NewsletterServiceInterface

	// ヘルスチェック
	DB Pinger

	// 管理者トークン（ニュースレター発行API用）
	AdminToken string

	// メトリクス
	Metrics metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → RecoveryMiddleware
//	→ LoggingMiddleware → HTTPStatusメトリクス → RateLimitMiddleware(General)
//
// ヘルスチェック（/health）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(newHTTPStatusMiddleware(deps.Metrics))

	subHandler := NewSubscriptionHandler(deps.SubscriptionService, deps.Metrics)
	newsHandler := NewNewsletterHandler(deps.NewsletterService, deps.Metrics)
	healthHandler := NewHealthHandler(deps.DB)

	// ヘルスチェック（レート制限の外）
	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 購読管理（認証不要の公開API）
		r.Route("/subscriptions", func(r chi.Router) {
			// POST /subscriptions - 購読登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.SubscribeMiddleware()).Post("/", subHandler.Subscribe)

			r.Get("/confirm", subHandler.Confirm)
			r.Post("/resend", subHandler.Resend)
			r.Post("/unsubscribe", subHandler.Unsubscribe)
		})

		// ニュースレター発行（管理者トークン必須）
		r.Route("/newsletters", func(r chi.Router) {
			r.Use(NewAdminAuthMiddleware(deps.AdminToken))

			r.Post("/", newsHandler.Publish)
			r.Get("/{id}/status", newsHandler.DeliveryStatus)
		})
	})

	return r
}

// statusWriter はレスポンスのステータスコードを記録するResponseWriterラッパー。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// newHTTPStatusMiddleware はレスポンスのステータスコードをメトリクスに記録する
// ミドルウェアを返す。
func newHTTPStatusMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			collector.RecordHTTPStatus(sw.status)
		})
	}
}
