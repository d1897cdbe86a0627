package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/pokedex/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスボディのデコードに失敗: %v", err)
	}
	return body
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"CSRF", writeCSRFFailed, http.StatusForbidden, model.ErrCodeCSRFFailed},
		{"レート制限", func(w http.ResponseWriter) { writeRateLimited(w, 3) }, http.StatusTooManyRequests, model.ErrCodeRateLimited},
		{"不正な入力", func(w http.ResponseWriter) { WriteBadRequest(w, "IDが不正です") }, http.StatusBadRequest, model.ErrCodeInvalidInput},
		{"内部エラー", WriteInternalServerError, http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.wantCode || body.Message == "" || body.Action == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestWriteBadRequest_KeepsReason(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBadRequest(w, "ページサイズが不正です")

	if body := decodeErrorBody(t, w); !strings.Contains(body.Message, "ページサイズが不正です") || body.Category != "validation" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteRateLimited_RetryAfter(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{3, "3"},
		{0, "1"},
		{-5, "1"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeRateLimited(w, tt.sec)
		if got := w.Header().Get("Retry-After"); got != tt.want {
			t.Errorf("writeRateLimited(%d): Retry-After = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
