// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, remote, network, system
	Action   string // ユーザー向け対処方法
	Status   int    // 上流サービスのHTTPステータス（該当する場合のみ）

	cause error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodePasswordMismatch = "PASSWORD_MISMATCH"
	ErrCodeAuthRequired     = "AUTH_REQUIRED"
	ErrCodeSessionRejected  = "SESSION_REJECTED"
	ErrCodeRemoteFailed     = "REMOTE_FAILED"
	ErrCodeNetworkFailed    = "NETWORK_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeCSRFFailed       = "CSRF_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// 汎用フォールバックメッセージ。
// サーバーがmessageを返さなかった場合や通信・パースに失敗した場合に使用する。
const (
	MsgRequestFailed = "リクエストの処理中にエラーが発生しました。"
	MsgLoadFailed    = "ポケモンの読み込みに失敗しました。"
	MsgCatchFailed   = "ポケモンを捕まえられませんでした。"
	MsgReleaseFailed = "ポケモンを逃がせませんでした。"
	MsgSearchFailed  = "検索中にエラーが発生しました。"
	MsgSampleFailed  = "候補のポケモンを取得できませんでした。"
)

// ErrAuthRequired はセッションが存在しない場合のエラー。
// メッセージとして表示せず、未認証の入口画面へのリダイレクトで解決する。
var ErrAuthRequired = &APIError{
	Code:     ErrCodeAuthRequired,
	Message:  "ログインが必要です。",
	Category: "auth",
	Action:   "ログインしてください。",
}

// ErrSessionRejected はバックエンドがトークンを拒否した場合のエラー。
// errors.Is(err, ErrAuthRequired) も真になる。
var ErrSessionRejected = &APIError{
	Code:     ErrCodeSessionRejected,
	Message:  "セッションの有効期限が切れました。",
	Category: "auth",
	Action:   "再度ログインしてください。",
	cause:    ErrAuthRequired,
}

// IsAuthError はエラーが認証要求（リダイレクトで解決するもの）かどうかを判定する。
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

// NewPasswordMismatchError はパスワード不一致のバリデーションエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "パスワードが一致しません。",
		Category: "validation",
		Action:   "確認用パスワードを同じ値で入力してください。",
	}
}

// NewInvalidInputError は入力値が不正な場合のバリデーションエラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewRemoteError は上流サービスが非成功ステータスを返した場合のエラーを生成する。
// サーバーが返したメッセージが空の場合はfallbackを使用する。
func NewRemoteError(status int, serverMessage, fallback string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = fallback
	}
	return &APIError{
		Code:     ErrCodeRemoteFailed,
		Message:  msg,
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
	}
}

// NewNetworkError は通信またはレスポンスのパースに失敗した場合のエラーを生成する。
// 表示用メッセージは常にfallbackとし、原因はUnwrapで辿れるようにする。
func NewNetworkError(cause error, fallback string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailed,
		Message:  fallback,
		Category: "network",
		Action:   "接続を確認して再度お試しください。",
		cause:    cause,
	}
}

// UserMessage はエラーから画面に表示するメッセージを取り出す。
// APIErrorでない場合はfallbackを返す。
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
