package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/newsletter"
)

// NewsletterServiceInterface はニュースレターハンドラーが必要とするサービスインターフェース。
type NewsletterServiceInterface interface {
	// Publish はニュースレター号を保存し、配信エントリをキューに積む。
	Publish(ctx context.Context, subject, htmlContent, textContent string) (*model.Issue, int, error)
	// DeliveryStatus は指定号の配信状況を状態別に集計して返す。
	DeliveryStatus(ctx context.Context, issueID string) (*newsletter.DeliveryStatusSummary, error)
}

// NewsletterHandler はニュースレター発行のHTTPハンドラー。
// 全エンドポイントは管理者トークンによる認証を前提とする。
type NewsletterHandler struct {
	service NewsletterServiceInterface
	metrics metrics.MetricsCollector
}

// NewNewsletterHandler はNewsletterHandlerを生成する。
func NewNewsletterHandler(service NewsletterServiceInterface, collector metrics.MetricsCollector) *NewsletterHandler {
	return &NewsletterHandler{
		service: service,
		metrics: collector,
	}
}

// publishRequest はニュースレター号発行リクエストのボディ。
type publishRequest struct {
	Subject     string `json:"subject" validate:"required"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
}

// publishResponse はニュースレター号発行のレスポンス。
type publishResponse struct {
	IssueID   string    `json:"issue_id"`
	Subject   string    `json:"subject"`
	Enqueued  int       `json:"enqueued"`
	CreatedAt time.Time `json:"created_at"`
}

// deliveryStatusResponse は配信状況のレスポンス。
type deliveryStatusResponse struct {
	IssueID string `json:"issue_id"`
	Subject string `json:"subject"`
	Pending int    `json:"pending"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// Publish はニュースレター号を発行する。
// POST /newsletters
func (h *NewsletterHandler) Publish(w http.ResponseWriter, r *http.Request) {
	req, apiErr := decodeAndValidate[publishRequest](r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	issue, enqueued, err := h.service.Publish(r.Context(), req.Subject, req.HTMLContent, req.TextContent)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordDeliveriesEnqueued(enqueued)
	writeJSONResponse(w, http.StatusCreated, publishResponse{
		IssueID:   issue.ID,
		Subject:   issue.Subject,
		Enqueued:  enqueued,
		CreatedAt: issue.CreatedAt,
	})
}

// DeliveryStatus は号ごとの配信状況を取得する。
// GET /newsletters/{id}/status
func (h *NewsletterHandler) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	summary, err := h.service.DeliveryStatus(r.Context(), issueID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, deliveryStatusResponse{
		IssueID: summary.IssueID,
		Subject: summary.Subject,
		Pending: summary.Pending,
		Sent:    summary.Sent,
		Failed:  summary.Failed,
	})
}

// NewAdminAuthMiddleware は管理者トークンによるBearer認証ミドルウェアを返す。
// トークンの比較は定数時間で行う。
func NewAdminAuthMiddleware(adminToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     "UNAUTHORIZED",
					Message:  "認証が必要です。",
					Category: "auth",
					Action:   "管理者トークンをAuthorizationヘッダーに指定してください。",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
