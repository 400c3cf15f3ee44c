package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/model"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Subscribe は購読を登録し、確認メールを送信する。
	Subscribe(ctx context.Context, email, name string) error
	// Confirm は確認トークンを検証し、購読者をconfirmedに遷移させる。
	Confirm(ctx context.Context, token string) (*model.Subscriber, error)
	// Resend は確認メールを再送する。
	Resend(ctx context.Context, email string) error
	// Unsubscribe は購読を解除する。
	Unsubscribe(ctx context.Context, email string) error
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
	metrics metrics.MetricsCollector
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface, collector metrics.MetricsCollector) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		metrics: collector,
	}
}

// maxNameLength は購読者名の最大文字数。
const maxNameLength = 256

// forbiddenNameChars は購読者名に使用できない文字。
// メール本文やHTMLへの埋め込みで解釈されうる文字を弾く。
const forbiddenNameChars = `/()"<>\{}`

// emailRequest はメールアドレスのみを受け取るリクエストのボディ。
type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// statusResponse は購読操作の結果を表すレスポンス。
type statusResponse struct {
	Status string `json:"status"`
}

// Subscribe は購読を登録する。
// POST /subscriptions（application/x-www-form-urlencoded、name と email）
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "フォームデータの解析に失敗しました。",
			Category: "validation",
			Action:   "application/x-www-form-urlencoded形式でリクエストしてください。",
		})
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))

	if apiErr := validateSubscriberName(name); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if err := validate.Var(emailAddr, "required,email"); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidEmailError("メールアドレスの形式が正しくありません"))
		return
	}

	if err := h.service.Subscribe(r.Context(), emailAddr, name); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSubscribe()
	writeJSONResponse(w, http.StatusOK, statusResponse{Status: "pending_confirmation"})
}

// Confirm は確認トークンを検証して購読を確定する。
// GET /subscriptions/confirm?subscription_token=...
func (h *SubscriptionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("subscription_token")

	sub, err := h.service.Confirm(r.Context(), token)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeTokenNotFound {
			h.metrics.RecordConfirmFailure()
		}
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordConfirmSuccess()
	writeJSONResponse(w, http.StatusOK, statusResponse{Status: string(sub.Status)})
}

// Resend は確認メールを再送する。
// POST /subscriptions/resend
func (h *SubscriptionHandler) Resend(w http.ResponseWriter, r *http.Request) {
	req, apiErr := decodeAndValidate[emailRequest](r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Resend(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statusResponse{Status: "resent"})
}

// Unsubscribe は購読を解除する。
// POST /subscriptions/unsubscribe
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	req, apiErr := decodeAndValidate[emailRequest](r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Unsubscribe(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statusResponse{Status: "unsubscribed"})
}

// validateSubscriberName は購読者名のバリデーションを行う。
func validateSubscriberName(name string) *model.APIError {
	if name == "" {
		return model.NewInvalidNameError("購読者名が指定されていません")
	}
	if len([]rune(name)) > maxNameLength {
		return model.NewInvalidNameError("購読者名が長すぎます")
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return model.NewInvalidNameError("購読者名に使用できない文字が含まれています")
	}
	return nil
}
