package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMiddlewareChain_LoggingRecoveryCORS は
// Logging -> Recovery -> CORS のチェーンが正しく動作することを検証する。
func TestMiddlewareChain_LoggingRecoveryCORS(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	loggingMW := NewLoggingMiddleware(logger)
	recoveryMW := NewRecoveryMiddleware()
	corsMW := NewCORSMiddleware("http://localhost:3000")

	handler := loggingMW(recoveryMW(corsMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
	if !strings.Contains(buf.String(), "http_request") {
		t.Error("リクエストログが出力されていない")
	}
}

// TestMiddlewareChain_PanicInHandler は
// チェーン内でpanicが発生しても500が返り、ログに記録されることを検証する。
func TestMiddlewareChain_PanicInHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	loggingMW := NewLoggingMiddleware(logger)
	recoveryMW := NewRecoveryMiddleware()

	handler := loggingMW(recoveryMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

// TestMiddlewareChain_RateLimitBeforeHandler は
// レート制限がハンドラーの手前で適用されることを検証する。
func TestMiddlewareChain_RateLimitBeforeHandler(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		SubscribeRate:   1,
		SubscribeBurst:  1,
		CleanupInterval: 1 * time.Minute,
	}
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handlerCalls := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.1:40000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	if handlerCalls != 1 {
		t.Errorf("handler call count = %d, want 1", handlerCalls)
	}
}
