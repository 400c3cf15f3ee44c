// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// SubscriberRepository は購読者データの永続化インターフェース。
type SubscriberRepository interface {
	// FindByID は指定IDの購読者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscriber, error)

	// FindByEmail はメールアドレスで購読者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Subscriber, error)

	// CreateWithToken は購読者と確認トークンを同一トランザクションで作成する。
	// emailの重複時はErrDuplicateEmail、トークンの衝突時はErrDuplicateTokenを返す。
	CreateWithToken(ctx context.Context, sub *model.Subscriber, token *model.SubscriptionToken) error

	// ConfirmByToken はトークンを消費して購読者をconfirmedに遷移させる。
	// トークン検索・状態更新・トークン削除を同一トランザクションで行う。
	// トークンが存在しない場合はnilを返す（エラーにしない）。
	ConfirmByToken(ctx context.Context, token string) (*model.Subscriber, error)

	// UpdateStatus は購読者の状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.SubscriberStatus) error

	// ListConfirmed はconfirmed状態の全購読者を返す。
	ListConfirmed(ctx context.Context) ([]*model.Subscriber, error)
}

// TokenRepository は確認トークンの永続化インターフェース。
type TokenRepository interface {
	// FindLatestBySubscriberID は指定購読者の最新トークンを取得する。
	// 見つからない場合はnilを返す。
	FindLatestBySubscriberID(ctx context.Context, subscriberID string) (*model.SubscriptionToken, error)

	// ReplaceForSubscriber は指定購読者の既存トークンを削除し、
	// 新しいトークンを同一トランザクションで挿入する。
	// トークンの衝突時はErrDuplicateTokenを返す。
	ReplaceForSubscriber(ctx context.Context, subscriberID string, token *model.SubscriptionToken) error

	// DeleteIssuedBefore は発行日時がcutoffより古いトークンを削除し、削除件数を返す。
	DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IssueRepository はニュースレター号の永続化インターフェース。
type IssueRepository interface {
	// Create はニュースレター号を作成する。
	Create(ctx context.Context, issue *model.Issue) error

	// FindByID は指定IDの号を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Issue, error)

	// EnqueueDeliveries は指定号の配信エントリをconfirmed購読者1人につき
	// 1行ずつ挿入し、enqueueした件数を返す。既にエントリが存在する
	// 購読者はスキップされる（冪等）。
	EnqueueDeliveries(ctx context.Context, issueID string) (int, error)
}

// DeliveryRepository は配信キューの永続化インターフェース。
type DeliveryRepository interface {
	// ListDue は配信期限が到来したpendingエントリを取得する。
	// next_attempt_at <= now() の行をFOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDue(ctx context.Context, limit int) ([]*model.Delivery, error)

	// MarkSent は配信エントリをsentに遷移させる。
	MarkSent(ctx context.Context, id string) error

	// MarkRetry は試行回数とエラーメッセージを記録し、次回試行日時を設定する。
	MarkRetry(ctx context.Context, id string, lastError string, nextAttemptAt time.Time) error

	// MarkFailed はリトライ上限超過の配信エントリをfailedに遷移させる。
	MarkFailed(ctx context.Context, id string, lastError string) error

	// CountByIssueAndStatus は指定号の状態別エントリ数を返す。
	CountByIssueAndStatus(ctx context.Context, issueID string, status model.DeliveryStatus) (int, error)

	// DeleteFinishedBefore はupdated_atがcutoffより古いsent/failedエントリを削除し、
	// 削除件数を返す。
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
