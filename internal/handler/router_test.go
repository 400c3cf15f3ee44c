package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsmill/internal/middleware"
)

// testRouter はテスト用の依存でNewRouterを構成する。
func testRouter(t *testing.T, m *mockMetrics) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		SubscribeRate:   1,
		SubscribeBurst:  2,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:              slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin:   "https://newsmill.example.com",
		RateLimiter:         rl,
		SubscriptionService: &mockSubscriptionService{},
		NewsletterService:   &mockNewsletterService{},
		DB:                  &mockPinger{},
		AdminToken:          "admin-secret",
		Metrics:             m,
	})
}

func TestRouter_SubscriptionRoutes(t *testing.T) {
	router := testRouter(t, &mockMetrics{})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		form       bool
		wantStatus int
	}{
		{name: "購読登録", method: http.MethodPost, target: "/subscriptions", body: "name=taro&email=taro%40example.com", form: true, wantStatus: http.StatusOK},
		{name: "購読確認", method: http.MethodGet, target: "/subscriptions/confirm?subscription_token=tok", wantStatus: http.StatusOK},
		{name: "確認メール再送", method: http.MethodPost, target: "/subscriptions/resend", body: `{"email":"taro@example.com"}`, wantStatus: http.StatusOK},
		{name: "購読解除", method: http.MethodPost, target: "/subscriptions/unsubscribe", body: `{"email":"taro@example.com"}`, wantStatus: http.StatusOK},
		{name: "未定義ルート", method: http.MethodGet, target: "/subscriptions/unknown", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
				if tt.form {
					req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				} else {
					req.Header.Set("Content-Type", "application/json")
				}
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}
			req.RemoteAddr = "203.0.113.50:40000"

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := testRouter(t, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_NewslettersRequireAdminToken(t *testing.T) {
	router := testRouter(t, &mockMetrics{})

	// トークンなしは401
	req := httptest.NewRequest(http.MethodPost, "/newsletters",
		strings.NewReader(`{"subject":"第1号","text_content":"本文"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.51:40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("トークンなし: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// 正しいトークンで発行できる
	req = httptest.NewRequest(http.MethodPost, "/newsletters",
		strings.NewReader(`{"subject":"第1号","text_content":"本文"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin-secret")
	req.RemoteAddr = "203.0.113.51:40000"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("トークンあり: status = %d, want %d", w.Code, http.StatusCreated)
	}
}

// 購読登録ルートに専用レート制限が効いていることを検証
func TestRouter_SubscribeRateLimit(t *testing.T) {
	router := testRouter(t, &mockMetrics{})

	// バースト（2回）を使い切る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions",
			strings.NewReader("name=taro&email=taro%40example.com"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.52:40000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/subscriptions",
		strings.NewReader("name=taro&email=taro%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.52:40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// 他のルートは一般レート制限のみで引き続き通る
	req = httptest.NewRequest(http.MethodPost, "/subscriptions/resend",
		strings.NewReader(`{"email":"taro@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.52:40000"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("resend: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := testRouter(t, &mockMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_RecordsHTTPStatusMetric(t *testing.T) {
	m := &mockMetrics{}
	router := testRouter(t, m)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if len(m.httpStatuses) != 1 || m.httpStatuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", m.httpStatuses)
	}
}
