package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用した確認トークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// FindLatestBySubscriberID は指定購読者の最新トークンを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindLatestBySubscriberID(ctx context.Context, subscriberID string) (*model.SubscriptionToken, error) {
	token := &model.SubscriptionToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT subscription_token, subscriber_id, issued_at
		 FROM subscription_tokens
		 WHERE subscriber_id = $1
		 ORDER BY issued_at DESC
		 LIMIT 1`,
		subscriberID,
	).Scan(&token.Token, &token.SubscriberID, &token.IssuedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("確認トークンの取得に失敗しました: %w", err)
	}

	return token, nil
}

// ReplaceForSubscriber は指定購読者の既存トークンをすべて削除し、
// 新しいトークンを同一トランザクションで挿入する。
// トークン値が衝突した場合はErrDuplicateTokenを返す。
func (r *PostgresTokenRepo) ReplaceForSubscriber(ctx context.Context, subscriberID string, token *model.SubscriptionToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM subscription_tokens WHERE subscriber_id = $1`,
		subscriberID,
	)
	if err != nil {
		return fmt.Errorf("既存トークンの削除に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscription_tokens (subscription_token, subscriber_id, issued_at)
		 VALUES ($1, $2, $3)`,
		token.Token, token.SubscriberID, token.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("新規トークンの挿入に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteIssuedBefore は発行日時がcutoffより古いトークンを削除し、削除件数を返す。
// 期限切れトークンの定期掃除に使用される。
func (r *PostgresTokenRepo) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscription_tokens WHERE issued_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れトークンの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
