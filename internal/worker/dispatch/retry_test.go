package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/newsmill/internal/email"
)

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want SendResult
	}{
		{name: "400は恒久的失敗", err: &email.StatusError{StatusCode: 400}, want: SendResultPermanent},
		{name: "401は恒久的失敗", err: &email.StatusError{StatusCode: 401}, want: SendResultPermanent},
		{name: "422は恒久的失敗", err: &email.StatusError{StatusCode: 422}, want: SendResultPermanent},
		{name: "429は一時的失敗", err: &email.StatusError{StatusCode: 429}, want: SendResultTransient},
		{name: "500は一時的失敗", err: &email.StatusError{StatusCode: 500}, want: SendResultTransient},
		{name: "503は一時的失敗", err: &email.StatusError{StatusCode: 503}, want: SendResultTransient},
		{name: "ネットワークエラーは一時的失敗", err: errors.New("connection refused"), want: SendResultTransient},
		{name: "タイムアウトは一時的失敗", err: context.DeadlineExceeded, want: SendResultTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySendError(tt.err); got != tt.want {
				t.Errorf("ClassifySendError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifySendError_WrappedStatusError(t *testing.T) {
	wrapped := errorsJoin(&email.StatusError{StatusCode: 400})

	if got := ClassifySendError(wrapped); got != SendResultPermanent {
		t.Errorf("ClassifySendError(wrapped) = %v, want %v", got, SendResultPermanent)
	}
}

// errorsJoin はテスト用にエラーをラップする。
func errorsJoin(err error) error {
	return &wrapError{err: err}
}

type wrapError struct {
	err error
}

func (w *wrapError) Error() string { return "メール送信に失敗しました: " + w.err.Error() }
func (w *wrapError) Unwrap() error { return w.err }

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "400", err: &email.StatusError{StatusCode: 400}, want: "http_4xx"},
		{name: "429", err: &email.StatusError{StatusCode: 429}, want: "http_429"},
		{name: "500", err: &email.StatusError{StatusCode: 500}, want: "http_5xx"},
		{name: "タイムアウト", err: context.DeadlineExceeded, want: "timeout"},
		{name: "その他", err: errors.New("connection refused"), want: "network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(tt.err); got != tt.want {
				t.Errorf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 1 * time.Minute},
		{attempts: 1, want: 2 * time.Minute},
		{attempts: 2, want: 4 * time.Minute},
		{attempts: 3, want: 8 * time.Minute},
		{attempts: 5, want: 32 * time.Minute},
		{attempts: 6, want: maxBackoff},
		{attempts: 100, want: maxBackoff},
	}

	for _, tt := range tests {
		got := CalculateBackoff(tt.attempts)
		if got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
