// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordSubscribe()
	RecordConfirmSuccess()
	RecordConfirmFailure()
	RecordEmailSent()
	RecordEmailFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordSendLatency(duration time.Duration)
	RecordDeliveriesEnqueued(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	subscribes         prometheus.Counter
	confirmSuccess     prometheus.Counter
	confirmFail        prometheus.Counter
	emailSent          prometheus.Counter
	emailFail          *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	sendLatency        prometheus.Histogram
	deliveriesEnqueued prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		subscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_subscribe_total",
			Help: "購読登録リクエスト成功の合計数",
		}),
		confirmSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_confirm_success_total",
			Help: "購読確認成功の合計数",
		}),
		confirmFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_confirm_fail_total",
			Help: "購読確認失敗（無効トークン）の合計数",
		}),
		emailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_email_sent_total",
			Help: "メール送信成功の合計数",
		}),
		emailFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmill_email_fail_total",
			Help: "メール送信失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsmill_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsmill_email_send_latency_seconds",
			Help:    "メール送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		deliveriesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsmill_deliveries_enqueued_total",
			Help: "キューに積まれた配信エントリの合計数",
		}),
	}

	reg.MustRegister(
		c.subscribes,
		c.confirmSuccess,
		c.confirmFail,
		c.emailSent,
		c.emailFail,
		c.httpStatus,
		c.sendLatency,
		c.deliveriesEnqueued,
	)

	return c
}

// RecordSubscribe は購読登録の成功を記録する。
func (c *Collector) RecordSubscribe() {
	c.subscribes.Inc()
}

// RecordConfirmSuccess は購読確認の成功を記録する。
func (c *Collector) RecordConfirmSuccess() {
	c.confirmSuccess.Inc()
}

// RecordConfirmFailure は購読確認の失敗を記録する。
func (c *Collector) RecordConfirmFailure() {
	c.confirmFail.Inc()
}

// RecordEmailSent はメール送信の成功を記録する。
func (c *Collector) RecordEmailSent() {
	c.emailSent.Inc()
}

// RecordEmailFailure はメール送信の失敗を理由付きで記録する。
func (c *Collector) RecordEmailFailure(reason string) {
	c.emailFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSendLatency はメール送信のレイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordDeliveriesEnqueued はキューに積まれた配信エントリ数を記録する。
func (c *Collector) RecordDeliveriesEnqueued(count int) {
	c.deliveriesEnqueued.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
