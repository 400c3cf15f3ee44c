// Package email はトランザクションメール送信機能を提供する。
// Postmark互換のREST APIを呼び出して確認メールとニュースレターを配信する。
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Sender はメール送信機能のインターフェースを定義する。
// サービス層とワーカーはこのインターフェース経由で送信する。
type Sender interface {
	// Send は1通のメールを送信する。
	// 配信APIがエラーステータスを返した場合は*StatusErrorを返す。
	Send(ctx context.Context, msg *Message) error
}

// Message は送信する1通のメールを表す。
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// StatusError は配信APIのエラーステータス応答を表す。
// ワーカーのリトライ判定はStatusCodeを参照する。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("配信APIがステータス %d を返しました", e.StatusCode)
}

// sendRequest は配信APIに送信するJSONペイロード。
type sendRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Client はPostmark互換メール配信APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	sender     string
	authToken  string
}

// NewClient はClient の新しいインスタンスを生成する。
// baseURLは配信APIのベースURL、senderは差出人アドレス、
// authTokenはサーバートークン。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, sender, authToken string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		sender:     sender,
		authToken:  authToken,
	}
}

// Send は1通のメールを送信する。
// 配信APIがエラーステータスを返した場合は*StatusErrorを返し、
// 呼び出し元がリトライ可否を判断する。
func (c *Client) Send(ctx context.Context, msg *Message) error {
	// リクエストボディ構築
	payload := sendRequest{
		From:     c.sender,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	// HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.authToken)

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("配信APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("to", msg.To),
		)
		return fmt.Errorf("配信APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	// HTTPステータスチェック
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("配信APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("to", msg.To),
		)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Debug("メールを送信しました",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)

	return nil
}

// compile-time interface check
var _ Sender = (*Client)(nil)
