// Package dispatch はニュースレターのバックグラウンド配信処理を提供する。
// スケジューラ、ディスパッチャー、リトライ/バックオフ戦略を含む。
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/newsmill/internal/email"
	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/repository"
)

// Dispatcher はpendingの配信エントリを取得し、メール送信を実行する。
// x/time/rateのリミッターで配信APIへの送信レートを制御する。
type Dispatcher struct {
	deliveryRepo repository.DeliveryRepository
	issueRepo    repository.IssueRepository
	sender       email.Sender
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
	limiter      *rate.Limiter

	batchSize      int
	maxConcurrency int
	maxAttempts    int

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// DispatcherConfig はDispatcherの設定。
type DispatcherConfig struct {
	// SendsPerSecond は配信APIへの毎秒送信数の上限。
	SendsPerSecond float64
	// BatchSize は1サイクルで取得する配信エントリ数の上限。
	BatchSize int
	// MaxConcurrency は送信の最大並列数。
	MaxConcurrency int
	// MaxAttempts は配信エントリごとの送信試行回数の上限。
	MaxAttempts int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// 設定値が0以下の場合はデフォルト値を使用する。
func NewDispatcher(
	deliveryRepo repository.DeliveryRepository,
	issueRepo repository.IssueRepository,
	sender email.Sender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config DispatcherConfig,
) *Dispatcher {
	if config.SendsPerSecond <= 0 {
		config.SendsPerSecond = 10
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	return &Dispatcher{
		deliveryRepo:   deliveryRepo,
		issueRepo:      issueRepo,
		sender:         sender,
		metrics:        collector,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Limit(config.SendsPerSecond), 1),
		batchSize:      config.BatchSize,
		maxConcurrency: config.MaxConcurrency,
		maxAttempts:    config.MaxAttempts,
		now:            time.Now,
	}
}

// RunOnce はpendingの配信エントリを1回取得し、並列でメール送信を実行する。
// semaphoreパターンで最大並列数を、rate.Limiterで送信レートを制御する。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 配信対象エントリを取得（FOR UPDATE SKIP LOCKED）
	deliveries, err := d.deliveryRepo.ListDue(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("配信エントリの取得に失敗しました: %w", err)
	}

	if len(deliveries) == 0 {
		return nil
	}

	d.logger.Info("配信サイクルを開始します",
		slog.Int("delivery_count", len(deliveries)),
	)

	issues, err := d.loadIssues(ctx, deliveries)
	if err != nil {
		return err
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, d.maxConcurrency)
	var wg sync.WaitGroup

	for _, delivery := range deliveries {
		if err := d.limiter.Wait(ctx); err != nil {
			// コンテキストキャンセル。残りは次サイクルで処理する
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(dl *model.Delivery) {
			defer wg.Done()
			defer func() { <-sem }()

			d.dispatchOne(ctx, dl, issues[dl.IssueID])
		}(delivery)
	}

	wg.Wait()

	duration := time.Since(start)
	d.logger.Info("配信サイクルが完了しました",
		slog.Int("delivery_count", len(deliveries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// loadIssues は配信エントリが参照する号をまとめて取得する。
func (d *Dispatcher) loadIssues(ctx context.Context, deliveries []*model.Delivery) (map[string]*model.Issue, error) {
	issues := make(map[string]*model.Issue)
	for _, delivery := range deliveries {
		if _, ok := issues[delivery.IssueID]; ok {
			continue
		}
		issue, err := d.issueRepo.FindByID(ctx, delivery.IssueID)
		if err != nil {
			return nil, fmt.Errorf("ニュースレター号の取得に失敗しました: %w", err)
		}
		issues[delivery.IssueID] = issue
	}
	return issues, nil
}

// dispatchOne は1件の配信エントリを処理する。
// 送信成功でsent、恒久的失敗または試行上限超過でfailed、
// 一時的失敗はバックオフ付きでpendingのままリトライ対象に戻す。
func (d *Dispatcher) dispatchOne(ctx context.Context, delivery *model.Delivery, issue *model.Issue) {
	if issue == nil {
		// FK制約により通常は起こらない
		d.logger.Error("配信エントリが未知の号を参照しています",
			slog.String("delivery_id", delivery.ID),
			slog.String("issue_id", delivery.IssueID),
		)
		d.markFailed(ctx, delivery, "参照先のニュースレター号が存在しません")
		return
	}

	msg := &email.Message{
		To:       delivery.Email,
		Subject:  issue.Subject,
		HTMLBody: issue.HTMLContent,
		TextBody: issue.TextContent,
	}

	sendStart := time.Now()
	err := d.sender.Send(ctx, msg)
	d.metrics.RecordSendLatency(time.Since(sendStart))

	if err == nil {
		if markErr := d.deliveryRepo.MarkSent(ctx, delivery.ID); markErr != nil {
			d.logger.Error("配信エントリの更新に失敗しました",
				slog.String("delivery_id", delivery.ID),
				slog.String("error", markErr.Error()),
			)
			return
		}
		d.metrics.RecordEmailSent()
		d.logger.Info("newsletter email sent",
			slog.String("delivery_id", delivery.ID),
			slog.String("issue_id", delivery.IssueID),
		)
		return
	}

	d.metrics.RecordEmailFailure(FailureReason(err))

	attempts := delivery.Attempts + 1
	if ClassifySendError(err) == SendResultPermanent {
		d.logger.Warn("メール送信が恒久的に失敗しました",
			slog.String("delivery_id", delivery.ID),
			slog.String("error", err.Error()),
		)
		d.markFailed(ctx, delivery, err.Error())
		return
	}

	if attempts >= d.maxAttempts {
		d.logger.Warn("メール送信の試行回数が上限に達しました",
			slog.String("delivery_id", delivery.ID),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		d.markFailed(ctx, delivery, err.Error())
		return
	}

	nextAttemptAt := d.now().Add(CalculateBackoff(delivery.Attempts))
	d.logger.Warn("メール送信に失敗しました。リトライします",
		slog.String("delivery_id", delivery.ID),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", nextAttemptAt),
		slog.String("error", err.Error()),
	)
	if markErr := d.deliveryRepo.MarkRetry(ctx, delivery.ID, err.Error(), nextAttemptAt); markErr != nil {
		d.logger.Error("配信エントリの更新に失敗しました",
			slog.String("delivery_id", delivery.ID),
			slog.String("error", markErr.Error()),
		)
	}
}

// markFailed は配信エントリをfailedに遷移させる。
func (d *Dispatcher) markFailed(ctx context.Context, delivery *model.Delivery, reason string) {
	if err := d.deliveryRepo.MarkFailed(ctx, delivery.ID, reason); err != nil {
		d.logger.Error("配信エントリの更新に失敗しました",
			slog.String("delivery_id", delivery.ID),
			slog.String("error", err.Error()),
		)
	}
}
