// Package subscription は購読登録・確認・解除のドメインロジックを提供する。
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/newsmill/internal/email"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/repository"
)

// maxTokenRetries はトークン衝突時の再生成回数の上限。
const maxTokenRetries = 3

// ServiceConfig は購読サービスの設定。
type ServiceConfig struct {
	// BaseURL は確認リンクのベースURL。
	BaseURL string
	// ResendCooldown は確認メール再送の最短間隔。
	ResendCooldown time.Duration
}

// Service は購読に関するビジネスロジックを提供する。
type Service struct {
	subscriberRepo repository.SubscriberRepository
	tokenRepo      repository.TokenRepository
	sender         email.Sender
	config         ServiceConfig

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	subscriberRepo repository.SubscriberRepository,
	tokenRepo repository.TokenRepository,
	sender email.Sender,
	config ServiceConfig,
) *Service {
	return &Service{
		subscriberRepo: subscriberRepo,
		tokenRepo:      tokenRepo,
		sender:         sender,
		config:         config,
		now:            time.Now,
	}
}

// Subscribe は購読を登録し、確認メールを送信する。
// 未登録のメールアドレスはpending状態で作成される。
// 既にpendingの場合はトークンを再発行して確認メールを再送する
// （クールダウン内の場合は送信をスキップする）。
// confirmed済みの場合は何もしない。unsubscribedの場合はpendingに戻して
// 確認フローをやり直す。いずれの場合も成功として扱い、メールアドレスの
// 登録有無を呼び出し元に漏らさない。
func (s *Service) Subscribe(ctx context.Context, emailAddr, name string) error {
	existing, err := s.subscriberRepo.FindByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}

	if existing == nil {
		return s.createAndSend(ctx, emailAddr, name)
	}

	switch existing.Status {
	case model.StatusConfirmed:
		// 確認済みの購読者には何もしない
		slog.Info("subscribe request for already confirmed subscriber",
			slog.String("subscriber_id", existing.ID),
		)
		return nil

	case model.StatusUnsubscribed:
		// 解除済みの購読者は確認フローをやり直す
		if err := s.subscriberRepo.UpdateStatus(ctx, existing.ID, model.StatusPending); err != nil {
			return fmt.Errorf("購読者状態の更新に失敗しました: %w", err)
		}
		return s.reissueAndSend(ctx, existing, false)

	default:
		// pending: トークンを再発行して再送する（クールダウン内はスキップ）
		return s.reissueAndSend(ctx, existing, true)
	}
}

// Confirm は確認トークンを検証し、購読者をconfirmedに遷移させる。
// トークンは確認と同時に消費される。未知のトークンの場合は
// TOKEN_NOT_FOUNDエラーを返す。
func (s *Service) Confirm(ctx context.Context, token string) (*model.Subscriber, error) {
	if token == "" {
		return nil, model.NewMissingTokenError()
	}

	sub, err := s.subscriberRepo.ConfirmByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("購読確認に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, model.NewTokenNotFoundError()
	}

	slog.Info("subscription confirmed",
		slog.String("subscriber_id", sub.ID),
	)

	return sub, nil
}

// Resend は確認メールを再送する。
// メールアドレスが未登録または確認済みの場合も成功として扱い、
// 登録有無を呼び出し元に漏らさない。前回発行からクールダウン内の
// 再送要求にはRESEND_COOLDOWNエラーを返す。
func (s *Service) Resend(ctx context.Context, emailAddr string) error {
	existing, err := s.subscriberRepo.FindByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}

	// 未登録・確認済み・解除済みはいずれも成功として扱う
	if existing == nil || existing.Status != model.StatusPending {
		return nil
	}

	latest, err := s.tokenRepo.FindLatestBySubscriberID(ctx, existing.ID)
	if err != nil {
		return fmt.Errorf("既存トークンの取得に失敗しました: %w", err)
	}
	if latest != nil {
		elapsed := s.now().Sub(latest.IssuedAt)
		if elapsed < s.config.ResendCooldown {
			retryAfter := int((s.config.ResendCooldown - elapsed).Seconds()) + 1
			return model.NewResendCooldownError(retryAfter)
		}
	}

	return s.reissueAndSend(ctx, existing, false)
}

// Unsubscribe は購読を解除する。
// 購読者の行は削除せず、unsubscribed状態への遷移として記録する。
// メールアドレスが未登録の場合も成功として扱う。
func (s *Service) Unsubscribe(ctx context.Context, emailAddr string) error {
	existing, err := s.subscriberRepo.FindByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	if existing == nil || existing.Status == model.StatusUnsubscribed {
		return nil
	}

	if err := s.subscriberRepo.UpdateStatus(ctx, existing.ID, model.StatusUnsubscribed); err != nil {
		return fmt.Errorf("購読解除に失敗しました: %w", err)
	}

	slog.Info("subscriber unsubscribed",
		slog.String("subscriber_id", existing.ID),
	)

	return nil
}

// createAndSend は新規購読者と確認トークンを作成し、確認メールを送信する。
// トークンのPK衝突時は上限回数まで再生成する。
func (s *Service) createAndSend(ctx context.Context, emailAddr, name string) error {
	sub := &model.Subscriber{
		ID:           uuid.New().String(),
		Email:        emailAddr,
		Name:         name,
		Status:       model.StatusPending,
		SubscribedAt: s.now(),
	}

	var lastErr error
	for i := 0; i < maxTokenRetries; i++ {
		tokenValue, err := generateToken()
		if err != nil {
			return err
		}
		token := &model.SubscriptionToken{
			Token:        tokenValue,
			SubscriberID: sub.ID,
			IssuedAt:     s.now(),
		}

		err = s.subscriberRepo.CreateWithToken(ctx, sub, token)
		if err == nil {
			slog.Info("new subscriber created",
				slog.String("subscriber_id", sub.ID),
			)
			return s.sendConfirmation(ctx, sub, tokenValue)
		}
		if errors.Is(err, repository.ErrDuplicateToken) {
			lastErr = err
			continue
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// 同時リクエストとの競合。登録済みとして成功を返す
			slog.Info("concurrent subscribe detected",
				slog.String("subscriber_id", sub.ID),
			)
			return nil
		}
		return fmt.Errorf("購読者の作成に失敗しました: %w", err)
	}

	return fmt.Errorf("確認トークンの生成が%d回衝突しました: %w", maxTokenRetries, lastErr)
}

// reissueAndSend は既存購読者のトークンを再発行し、確認メールを送信する。
// respectCooldownがtrueの場合、クールダウン内の要求は送信せず成功を返す。
func (s *Service) reissueAndSend(ctx context.Context, sub *model.Subscriber, respectCooldown bool) error {
	if respectCooldown {
		latest, err := s.tokenRepo.FindLatestBySubscriberID(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("既存トークンの取得に失敗しました: %w", err)
		}
		if latest != nil && s.now().Sub(latest.IssuedAt) < s.config.ResendCooldown {
			return nil
		}
	}

	var lastErr error
	for i := 0; i < maxTokenRetries; i++ {
		tokenValue, err := generateToken()
		if err != nil {
			return err
		}
		token := &model.SubscriptionToken{
			Token:        tokenValue,
			SubscriberID: sub.ID,
			IssuedAt:     s.now(),
		}

		err = s.tokenRepo.ReplaceForSubscriber(ctx, sub.ID, token)
		if err == nil {
			return s.sendConfirmation(ctx, sub, tokenValue)
		}
		if errors.Is(err, repository.ErrDuplicateToken) {
			lastErr = err
			continue
		}
		return fmt.Errorf("トークンの再発行に失敗しました: %w", err)
	}

	return fmt.Errorf("確認トークンの生成が%d回衝突しました: %w", maxTokenRetries, lastErr)
}

// sendConfirmation はトークン付きの確認リンクを含むメールを送信する。
func (s *Service) sendConfirmation(ctx context.Context, sub *model.Subscriber, token string) error {
	confirmURL := fmt.Sprintf("%s/subscriptions/confirm?subscription_token=%s",
		s.config.BaseURL, url.QueryEscape(token))

	msg := email.NewConfirmationMessage(sub.Email, sub.Name, confirmURL)
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("確認メールの送信に失敗しました: %w", err)
	}

	slog.Info("confirmation email sent",
		slog.String("subscriber_id", sub.ID),
	)

	return nil
}
