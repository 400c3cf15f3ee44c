package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/newsmill/internal/model"
)

// validate はハンドラー層で共有するバリデータ。
var validate = validator.New()

// decodeAndValidate はJSONリクエストボディをデコードし、validateタグに
// 基づいてバリデーションする。失敗時はAPIErrorを返す。
func decodeAndValidate[T any](r *http.Request) (*T, *model.APIError) {
	var body T

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		}
	}

	if err := validate.Struct(&body); err != nil {
		return nil, validationAPIError(err)
	}

	return &body, nil
}

// validationAPIError はvalidator.ValidationErrorsの最初の違反をAPIErrorに変換する。
func validationAPIError(err error) *model.APIError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストの検証に失敗しました。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		}
	}

	fe := validationErrs[0]
	switch fe.Field() {
	case "Email":
		if fe.Tag() == "required" {
			return model.NewInvalidEmailError("メールアドレスが指定されていません")
		}
		return model.NewInvalidEmailError("メールアドレスの形式が正しくありません")
	case "Name":
		if fe.Tag() == "max" {
			return model.NewInvalidNameError("購読者名が長すぎます")
		}
		return model.NewInvalidNameError("購読者名が指定されていません")
	default:
		return &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストの検証に失敗しました。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		}
	}
}
