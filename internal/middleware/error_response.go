package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/porttfolio/internal/model"
)

// ErrorResponseBody はJSON APIのエラーレスポンス。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はapiErrをJSONで書き込む。エラー応答はキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteRetryableError はRetry-After付きでapiErrを書き込む。
// retryAfterは秒単位に切り上げ、最低1秒とする。
func WriteRetryableError(w http.ResponseWriter, statusCode int, retryAfter time.Duration, apiErr *model.APIError) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(retryAfter)))
	WriteErrorResponse(w, statusCode, apiErr)
}

// RetryAfterSeconds はRetry-Afterヘッダー用の秒数を返す。
func RetryAfterSeconds(d time.Duration) int {
	sec := int((d + time.Second - 1) / time.Second)
	if sec < 1 {
		return 1
	}
	return sec
}

// WriteInternalServerError は500を書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}
