package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresIssueRepo はPostgreSQLを使用したニュースレター号リポジトリ。
type PostgresIssueRepo struct {
	db *sql.DB
}

// NewPostgresIssueRepo はPostgresIssueRepoを生成する。
func NewPostgresIssueRepo(db *sql.DB) *PostgresIssueRepo {
	return &PostgresIssueRepo{db: db}
}

// Create はニュースレター号を作成する。
func (r *PostgresIssueRepo) Create(ctx context.Context, issue *model.Issue) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO issues (id, subject, html_content, text_content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		issue.ID, issue.Subject, issue.HTMLContent, issue.TextContent, issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ニュースレター号の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの号を取得する。見つからない場合はnilを返す。
func (r *PostgresIssueRepo) FindByID(ctx context.Context, id string) (*model.Issue, error) {
	issue := &model.Issue{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject, html_content, text_content, created_at
		 FROM issues WHERE id = $1`,
		id,
	).Scan(&issue.ID, &issue.Subject, &issue.HTMLContent, &issue.TextContent, &issue.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ニュースレター号の取得に失敗しました: %w", err)
	}

	return issue, nil
}

// EnqueueDeliveries は指定号の配信エントリをconfirmed購読者1人につき1行挿入する。
// 既にエントリが存在する購読者はON CONFLICTでスキップされるため、
// 同じ号に対して複数回呼んでも安全。enqueueした件数を返す。
func (r *PostgresIssueRepo) EnqueueDeliveries(ctx context.Context, issueID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO issue_deliveries (issue_id, subscriber_id, email)
		 SELECT $1, s.id, s.email
		 FROM subscriptions s
		 WHERE s.status = $2
		 ON CONFLICT (issue_id, subscriber_id) DO NOTHING`,
		issueID, model.StatusConfirmed,
	)
	if err != nil {
		return 0, fmt.Errorf("配信エントリのenqueueに失敗しました: %w", err)
	}
	enqueued, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(enqueued), nil
}

// compile-time interface check
var _ IssueRepository = (*PostgresIssueRepo)(nil)
