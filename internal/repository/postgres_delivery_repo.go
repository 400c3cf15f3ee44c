package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresDeliveryRepo はPostgreSQLを使用した配信キューリポジトリ。
type PostgresDeliveryRepo struct {
	db *sql.DB
}

// NewPostgresDeliveryRepo はPostgresDeliveryRepoを生成する。
func NewPostgresDeliveryRepo(db *sql.DB) *PostgresDeliveryRepo {
	return &PostgresDeliveryRepo{db: db}
}

// ListDue は配信期限が到来したpendingエントリを取得する。
// next_attempt_at <= now() の行をFOR UPDATE SKIP LOCKEDで排他的に取得するため、
// 複数のワーカーが同時に走っても同じエントリを二重処理しない。
func (r *PostgresDeliveryRepo) ListDue(ctx context.Context, limit int) ([]*model.Delivery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, issue_id, subscriber_id, email, status, attempts,
		        last_error, next_attempt_at, created_at, updated_at
		 FROM issue_deliveries
		 WHERE status = $1
		   AND next_attempt_at <= now()
		 ORDER BY next_attempt_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		model.DeliveryStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象エントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var deliveries []*model.Delivery
	for rows.Next() {
		d := &model.Delivery{}
		if err := rows.Scan(
			&d.ID, &d.IssueID, &d.SubscriberID, &d.Email, &d.Status, &d.Attempts,
			&d.LastError, &d.NextAttemptAt, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("配信対象エントリの読み取りに失敗しました: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信対象エントリの走査に失敗しました: %w", err)
	}

	return deliveries, nil
}

// MarkSent は配信エントリをsentに遷移させる。
func (r *PostgresDeliveryRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE issue_deliveries SET
		    status = $2,
		    attempts = attempts + 1,
		    last_error = '',
		    updated_at = now()
		 WHERE id = $1`,
		id, model.DeliveryStatusSent,
	)
	if err != nil {
		return fmt.Errorf("配信エントリの送信済み更新に失敗しました: %w", err)
	}
	return nil
}

// MarkRetry は試行回数とエラーメッセージを記録し、次回試行日時を設定する。
// 状態はpendingのまま維持される。
func (r *PostgresDeliveryRepo) MarkRetry(ctx context.Context, id string, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE issue_deliveries SET
		    attempts = attempts + 1,
		    last_error = $2,
		    next_attempt_at = $3,
		    updated_at = now()
		 WHERE id = $1`,
		id, lastError, nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("配信エントリのリトライ更新に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はリトライ上限超過の配信エントリをfailedに遷移させる。
func (r *PostgresDeliveryRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE issue_deliveries SET
		    status = $2,
		    attempts = attempts + 1,
		    last_error = $3,
		    updated_at = now()
		 WHERE id = $1`,
		id, model.DeliveryStatusFailed, lastError,
	)
	if err != nil {
		return fmt.Errorf("配信エントリの失敗更新に失敗しました: %w", err)
	}
	return nil
}

// CountByIssueAndStatus は指定号の状態別エントリ数を返す。
func (r *PostgresDeliveryRepo) CountByIssueAndStatus(ctx context.Context, issueID string, status model.DeliveryStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issue_deliveries WHERE issue_id = $1 AND status = $2`,
		issueID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("配信エントリ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteFinishedBefore はupdated_atがcutoffより古いsent/failedエントリを削除し、
// 削除件数を返す。配信履歴の定期掃除に使用される。
func (r *PostgresDeliveryRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM issue_deliveries
		 WHERE status IN ($1, $2) AND updated_at < $3`,
		model.DeliveryStatusSent, model.DeliveryStatusFailed, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("完了済み配信エントリの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ DeliveryRepository = (*PostgresDeliveryRepo)(nil)
