package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(http.DefaultClient, logger, "https://api.example.com", "news@example.com", "token-1")
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
}

func TestClient_Send_PostsExpectedPayload(t *testing.T) {
	// テスト用HTTPサーバー: リクエストの形式を検証して200を返す
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if r.URL.Path != "/email" {
			t.Errorf("パス = %s, want /email", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", got)
		}
		if got := r.Header.Get("X-Postmark-Server-Token"); got != "server-token-1" {
			t.Errorf("X-Postmark-Server-Token = %s, want server-token-1", got)
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗した: %v", err)
		}
		if payload["From"] != "news@example.com" {
			t.Errorf("From = %s, want news@example.com", payload["From"])
		}
		if payload["To"] != "reader@example.com" {
			t.Errorf("To = %s, want reader@example.com", payload["To"])
		}
		if payload["Subject"] != "テスト件名" {
			t.Errorf("Subject = %s, want テスト件名", payload["Subject"])
		}
		if payload["HtmlBody"] != "<p>本文</p>" {
			t.Errorf("HtmlBody = %s, want <p>本文</p>", payload["HtmlBody"])
		}
		if payload["TextBody"] != "本文" {
			t.Errorf("TextBody = %s, want 本文", payload["TextBody"])
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(server.Client(), logger, server.URL, "news@example.com", "server-token-1")

	err := c.Send(context.Background(), &Message{
		To:       "reader@example.com",
		Subject:  "テスト件名",
		HTMLBody: "<p>本文</p>",
		TextBody: "本文",
	})
	if err != nil {
		t.Fatalf("Send がエラーを返した: %v", err)
	}
}

func TestClient_Send_ErrorStatus_ReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ErrorCode":500,"Message":"internal error"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(server.Client(), logger, server.URL, "news@example.com", "token-1")

	err := c.Send(context.Background(), &Message{To: "reader@example.com", Subject: "s"})
	if err == nil {
		t.Fatal("エラーステータスに対して Send はエラーを返すべき")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("エラーの型 = %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusInternalServerError)
	}
	if !strings.Contains(statusErr.Body, "internal error") {
		t.Errorf("Body = %q, want body to contain response text", statusErr.Body)
	}

	// エラーログが出力されていること
	if !strings.Contains(buf.String(), "配信APIがエラーステータスを返しました") {
		t.Error("エラーログが出力されていない")
	}
}

func TestClient_Send_UnauthorizedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(server.Client(), logger, server.URL, "news@example.com", "bad-token")

	err := c.Send(context.Background(), &Message{To: "reader@example.com", Subject: "s"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("エラーの型 = %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnauthorized)
	}
}

func TestClient_Send_NetworkError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	// 存在しないサーバーへの接続は失敗する
	c := NewClient(http.DefaultClient, logger, "http://127.0.0.1:1", "news@example.com", "token-1")

	err := c.Send(context.Background(), &Message{To: "reader@example.com", Subject: "s"})
	if err == nil {
		t.Fatal("接続失敗に対して Send はエラーを返すべき")
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Error("ネットワークエラーは *StatusError であってはならない")
	}
}

func TestClient_Send_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(server.Client(), logger, server.URL, "news@example.com", "token-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, &Message{To: "reader@example.com", Subject: "s"})
	if err == nil {
		t.Fatal("キャンセル済みコンテキストに対して Send はエラーを返すべき")
	}
}

func TestNewConfirmationMessage_ContainsLinkAndName(t *testing.T) {
	msg := NewConfirmationMessage(
		"reader@example.com",
		"山田太郎",
		"https://newsmill.example.com/subscriptions/confirm?subscription_token=abc123",
	)

	if msg.To != "reader@example.com" {
		t.Errorf("To = %s, want reader@example.com", msg.To)
	}
	if msg.Subject == "" {
		t.Error("Subject が空であってはならない")
	}
	if !strings.Contains(msg.HTMLBody, "abc123") {
		t.Error("HTMLBody に確認トークンが含まれていない")
	}
	if !strings.Contains(msg.TextBody, "abc123") {
		t.Error("TextBody に確認トークンが含まれていない")
	}
	if !strings.Contains(msg.HTMLBody, "山田太郎") {
		t.Error("HTMLBody に購読者名が含まれていない")
	}
	if !strings.Contains(msg.TextBody, "山田太郎") {
		t.Error("TextBody に購読者名が含まれていない")
	}
}

func TestStatusError_ErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 422}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("Error() = %q, want to contain status code", err.Error())
	}
}
