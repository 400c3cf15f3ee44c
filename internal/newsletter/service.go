// Package newsletter はニュースレター号の発行と配信状況のドメインロジックを提供する。
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/repository"
	"github.com/hitoshi/newsmill/internal/security"
)

// maxSubjectLength は件名の最大文字数。issuesテーブルの列幅に合わせる。
const maxSubjectLength = 500

// DeliveryStatusSummary は号ごとの配信状況の集計。
type DeliveryStatusSummary struct {
	IssueID string
	Subject string
	Pending int
	Sent    int
	Failed  int
}

// Service はニュースレター号に関するビジネスロジックを提供する。
type Service struct {
	issueRepo    repository.IssueRepository
	deliveryRepo repository.DeliveryRepository
	sanitizer    security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	issueRepo repository.IssueRepository,
	deliveryRepo repository.DeliveryRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		issueRepo:    issueRepo,
		deliveryRepo: deliveryRepo,
		sanitizer:    sanitizer,
	}
}

// Publish はニュースレター号を保存し、confirmed購読者全員分の
// 配信エントリをキューに積む。HTML本文は保存前にサニタイズされる。
// enqueueした配信エントリ数を号とともに返す。
func (s *Service) Publish(ctx context.Context, subject, htmlContent, textContent string) (*model.Issue, int, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, 0, model.NewInvalidIssueError("件名が空です")
	}
	if len([]rune(subject)) > maxSubjectLength {
		return nil, 0, model.NewInvalidIssueError("件名が長すぎます")
	}
	if strings.TrimSpace(htmlContent) == "" && strings.TrimSpace(textContent) == "" {
		return nil, 0, model.NewInvalidIssueError("本文が空です")
	}

	issue := &model.Issue{
		ID:          uuid.New().String(),
		Subject:     subject,
		HTMLContent: s.sanitizer.Sanitize(htmlContent),
		TextContent: textContent,
		CreatedAt:   time.Now(),
	}

	if err := s.issueRepo.Create(ctx, issue); err != nil {
		return nil, 0, fmt.Errorf("ニュースレター号の保存に失敗しました: %w", err)
	}

	enqueued, err := s.issueRepo.EnqueueDeliveries(ctx, issue.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("配信エントリのenqueueに失敗しました: %w", err)
	}

	slog.Info("newsletter issue published",
		slog.String("issue_id", issue.ID),
		slog.Int("enqueued", enqueued),
	)

	return issue, enqueued, nil
}

// DeliveryStatus は指定号の配信状況を状態別に集計して返す。
// 号が存在しない場合はISSUE_NOT_FOUNDエラーを返す。
func (s *Service) DeliveryStatus(ctx context.Context, issueID string) (*DeliveryStatusSummary, error) {
	issue, err := s.issueRepo.FindByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("ニュースレター号の取得に失敗しました: %w", err)
	}
	if issue == nil {
		return nil, model.NewIssueNotFoundError(issueID)
	}

	summary := &DeliveryStatusSummary{
		IssueID: issue.ID,
		Subject: issue.Subject,
	}

	counts := []struct {
		status model.DeliveryStatus
		dst    *int
	}{
		{model.DeliveryStatusPending, &summary.Pending},
		{model.DeliveryStatusSent, &summary.Sent},
		{model.DeliveryStatusFailed, &summary.Failed},
	}
	for _, c := range counts {
		n, err := s.deliveryRepo.CountByIssueAndStatus(ctx, issueID, c.status)
		if err != nil {
			return nil, fmt.Errorf("配信状況の集計に失敗しました: %w", err)
		}
		*c.dst = n
	}

	return summary, nil
}
