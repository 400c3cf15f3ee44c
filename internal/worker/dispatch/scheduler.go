package dispatch

import (
	"context"
	"log/slog"
	"time"
)

// DispatcherService は配信サイクルの実行インターフェース。
type DispatcherService interface {
	// RunOnce はpendingの配信エントリを1回取得して送信を実行する。
	RunOnce(ctx context.Context) error
}

// Scheduler は配信サイクルの定期実行を行う。
type Scheduler struct {
	dispatcher DispatcherService
	logger     *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(dispatcher DispatcherService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("配信スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.dispatcher.RunOnce(ctx); err != nil {
		s.logger.Error("配信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("配信スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.dispatcher.RunOnce(ctx); err != nil {
				s.logger.Error("配信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
