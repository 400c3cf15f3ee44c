// Package cleanup は古いデータの自動削除ジョブを提供する。
// TTLを超過した未使用の確認トークンと、保持期間を超過した
// 完了済み配信エントリ（sent/failed）を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsmill/internal/repository"
)

const (
	// defaultTokenTTL は未使用の確認トークンの保持期間（7日）。
	defaultTokenTTL = 7 * 24 * time.Hour
	// defaultDeliveryRetention は完了済み配信エントリの保持期間（30日）。
	defaultDeliveryRetention = 30 * 24 * time.Hour
)

// CleanupJob は古いトークンと配信エントリの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokenRepo    repository.TokenRepository
	deliveryRepo repository.DeliveryRepository
	logger       *slog.Logger

	TokenTTL          time.Duration // 未使用トークンの保持期間
	DeliveryRetention time.Duration // 完了済み配信エントリの保持期間

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間はトークン7日、配信エントリ30日。
func NewCleanupJob(
	tokenRepo repository.TokenRepository,
	deliveryRepo repository.DeliveryRepository,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		tokenRepo:         tokenRepo,
		deliveryRepo:      deliveryRepo,
		logger:            logger,
		TokenTTL:          defaultTokenTTL,
		DeliveryRetention: defaultDeliveryRetention,
		now:               time.Now,
	}
}

// Run はTTLを超過したトークンと保持期間を超過した配信エントリを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	tokenCutoff := j.now().Add(-j.TokenTTL)
	expiredTokens, err := j.tokenRepo.DeleteIssuedBefore(ctx, tokenCutoff)
	if err != nil {
		j.logger.Error("期限切れトークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れトークンの削除に失敗しました: %w", err)
	}

	deliveryCutoff := j.now().Add(-j.DeliveryRetention)
	finishedDeliveries, err := j.deliveryRepo.DeleteFinishedBefore(ctx, deliveryCutoff)
	if err != nil {
		j.logger.Error("完了済み配信エントリの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("完了済み配信エントリの削除に失敗しました: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("expired_tokens", expiredTokens),
		slog.Int64("finished_deliveries", finishedDeliveries),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
