package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// FindByID は指定IDの購読者を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByID(ctx context.Context, id string) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, subscribed_at
		 FROM subscriptions WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}

	return sub, nil
}

// FindByEmail はメールアドレスで購読者を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, subscribed_at
		 FROM subscriptions WHERE email = $1`,
		email,
	).Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによる購読者の検索に失敗しました: %w", err)
	}

	return sub, nil
}

// CreateWithToken は購読者と確認トークンを同一トランザクションで作成する。
// メールアドレスが既に登録されている場合はErrDuplicateEmail、
// トークン値が衝突した場合はErrDuplicateTokenを返す。
func (r *PostgresSubscriberRepo) CreateWithToken(ctx context.Context, sub *model.Subscriber, token *model.SubscriptionToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 購読者を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Email, sub.Name, sub.Status, sub.SubscribedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("購読者の作成に失敗しました: %w", err)
	}

	// 確認トークンを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscription_tokens (subscription_token, subscriber_id, issued_at)
		 VALUES ($1, $2, $3)`,
		token.Token, token.SubscriberID, token.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("確認トークンの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ConfirmByToken はトークンを消費して購読者をconfirmedに遷移させる。
// トークンの検索、購読者の状態更新、トークンの削除を同一トランザクションで行う。
// トークンが存在しない場合はnilを返す。
func (r *PostgresSubscriberRepo) ConfirmByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// トークンに対応する購読者を取得
	sub := &model.Subscriber{}
	err = tx.QueryRowContext(ctx,
		`SELECT s.id, s.email, s.name, s.status, s.subscribed_at
		 FROM subscriptions s
		 INNER JOIN subscription_tokens t ON s.id = t.subscriber_id
		 WHERE t.subscription_token = $1
		 FOR UPDATE OF s`,
		token,
	).Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("確認トークンの検索に失敗しました: %w", err)
	}

	// 購読者をconfirmedに遷移
	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2 WHERE id = $1`,
		sub.ID, model.StatusConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("購読者の確認に失敗しました: %w", err)
	}

	// 消費済みトークンを削除
	_, err = tx.ExecContext(ctx,
		`DELETE FROM subscription_tokens WHERE subscription_token = $1`,
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("確認トークンの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sub.Status = model.StatusConfirmed
	return sub, nil
}

// UpdateStatus は購読者の状態を更新する。
func (r *PostgresSubscriberRepo) UpdateStatus(ctx context.Context, id string, status model.SubscriberStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("購読者状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("subscriber not found: %s", id)
	}
	return nil
}

// ListConfirmed はconfirmed状態の全購読者を返す。
func (r *PostgresSubscriberRepo) ListConfirmed(ctx context.Context) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, name, status, subscribed_at
		 FROM subscriptions
		 WHERE status = $1
		 ORDER BY subscribed_at ASC`,
		model.StatusConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("確認済み購読者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscriber
	for rows.Next() {
		sub := &model.Subscriber{}
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("確認済み購読者の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("確認済み購読者の走査に失敗しました: %w", err)
	}

	return subs, nil
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
