package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/newsmill/internal/email"
)

// SendResult はメール送信エラーの分類。
type SendResult int

const (
	// SendResultPermanent は再試行しても成功しない失敗（4xx、429を除く）。
	SendResultPermanent SendResult = iota
	// SendResultTransient は再試行で成功しうる失敗（429/5xx/ネットワークエラー）。
	SendResultTransient
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = 1 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（1時間）。
	maxBackoff = 1 * time.Hour
	// defaultMaxAttempts は配信エントリごとの送信試行回数の上限。
	defaultMaxAttempts = 5
)

// ClassifySendError はメール送信エラーを分類する。
// 配信APIが4xxを返した場合は429を除いて恒久的失敗、
// 429と5xxおよびネットワークエラーは一時的失敗として扱う。
func ClassifySendError(err error) SendResult {
	var statusErr *email.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return SendResultTransient
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return SendResultPermanent
		default:
			return SendResultTransient
		}
	}

	// タイムアウト・接続失敗などのネットワークエラー
	return SendResultTransient
}

// FailureReason はメール送信エラーをメトリクスの理由ラベルに変換する。
func FailureReason(err error) string {
	var statusErr *email.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return "http_429"
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return "http_4xx"
		default:
			return "http_5xx"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "network"
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
