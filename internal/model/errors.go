// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, subscription, newsletter, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail        = "INVALID_EMAIL"
	ErrCodeInvalidName         = "INVALID_NAME"
	ErrCodeMissingToken        = "MISSING_TOKEN"
	ErrCodeTokenNotFound       = "TOKEN_NOT_FOUND"
	ErrCodeSubscriberNotFound  = "SUBSCRIBER_NOT_FOUND"
	ErrCodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	ErrCodeResendCooldown      = "RESEND_COOLDOWN"
	ErrCodeInvalidIssue        = "INVALID_ISSUE"
	ErrCodeIssueNotFound       = "ISSUE_NOT_FOUND"
)

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("無効なメールアドレスです: %s", reason),
		Category: "validation",
		Action:   "正しい形式のメールアドレスを入力してください。",
	}
}

// NewInvalidNameError は無効な購読者名エラーを生成する。
func NewInvalidNameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidName,
		Message:  fmt.Sprintf("無効な購読者名です: %s", reason),
		Category: "validation",
		Action:   "購読者名を入力してください。",
	}
}

// NewMissingTokenError は確認トークン未指定エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "確認トークンが指定されていません。",
		Category: "validation",
		Action:   "確認メールに記載されたリンクからアクセスしてください。",
	}
}

// NewTokenNotFoundError は未知の確認トークンエラーを生成する。
// 期限切れ・消費済み・存在しないトークンはいずれもこのエラーになる。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "確認トークンが無効です。",
		Category: "subscription",
		Action:   "確認メールを再送してから、新しいリンクでお試しください。",
	}
}

// NewSubscriberNotFoundError は購読者が見つからない場合のエラーを生成する。
func NewSubscriberNotFoundError(subscriberID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriberNotFound,
		Message:  fmt.Sprintf("指定された購読者が見つかりません: %s", subscriberID),
		Category: "subscription",
		Action:   "購読者IDを確認してください。",
	}
}

// NewAlreadyConfirmedError は確認済み購読者への再確認エラーを生成する。
func NewAlreadyConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyConfirmed,
		Message:  "この購読は既に確認されています。",
		Category: "subscription",
		Action:   "手続きは不要です。次号の配信をお待ちください。",
	}
}

// NewResendCooldownError は確認メール再送のクールダウンエラーを生成する。
func NewResendCooldownError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeResendCooldown,
		Message:  "確認メールの再送間隔が短すぎます。",
		Category: "subscription",
		Action:   fmt.Sprintf("%d秒待ってから再度お試しください。", retryAfterSec),
	}
}

// NewInvalidIssueError は無効なニュースレター号エラーを生成する。
func NewInvalidIssueError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIssue,
		Message:  fmt.Sprintf("無効なニュースレター号です: %s", reason),
		Category: "newsletter",
		Action:   "件名と本文（HTMLまたはテキスト）を指定してください。",
	}
}

// NewIssueNotFoundError はニュースレター号が見つからない場合のエラーを生成する。
func NewIssueNotFoundError(issueID string) *APIError {
	return &APIError{
		Code:     ErrCodeIssueNotFound,
		Message:  fmt.Sprintf("指定されたニュースレター号が見つかりません: %s", issueID),
		Category: "newsletter",
		Action:   "号IDを確認してください。",
	}
}
