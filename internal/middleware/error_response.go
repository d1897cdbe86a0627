package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/pokedex/internal/model"
)

// ErrorResponseBody は画面を描画する前に拒否したリクエストのJSONボディ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ミドルウェアが返す定型エラー。
var (
	errCSRFFailed = &model.APIError{
		Code:     model.ErrCodeCSRFFailed,
		Message:  "リクエストの検証に失敗しました。",
		Category: "validation",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
	errRateLimited = &model.APIError{
		Code:     model.ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
	errInternal = &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
)

// WriteErrorResponse はAPIErrorをJSONで書き込む。
// 拒否したレスポンスはキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteBadRequest はフォーム値が不正な場合の400を書き込む。
func WriteBadRequest(w http.ResponseWriter, reason string) {
	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(reason))
}

// writeCSRFFailed はCSRF検証に失敗したリクエストに403を返す。
func writeCSRFFailed(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, errCSRFFailed)
}

// writeRateLimited は429を返す。retryAfterSecは1秒未満なら1秒に切り上げる。
func writeRateLimited(w http.ResponseWriter, retryAfterSec int) {
	w.Header().Set("Retry-After", strconv.Itoa(max(retryAfterSec, 1)))
	WriteErrorResponse(w, http.StatusTooManyRequests, errRateLimited)
}

// WriteInternalServerError は詳細を伏せた500を書き込む。詳細はログにのみ記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, errInternal)
}
