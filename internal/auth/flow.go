// Package auth はメールアドレスとパスワードによるログイン・新規登録フローを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/pokedex/internal/backend"
	"github.com/hitoshi/pokedex/internal/model"
)

// Mode は認証画面のモード。
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// ParseMode は文字列をModeに変換する。不明な値はログインモードとする。
func ParseMode(s string) Mode {
	if Mode(s) == ModeRegister {
		return ModeRegister
	}
	return ModeLogin
}

// 成功時の通知メッセージ
const (
	MsgRegistered = "登録が完了しました。ログインしてください。"
	MsgLoggedIn   = "ログインしました。"
)

// UserAPI はコレクションサービスのユーザー認証API。
type UserAPI interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	Register(ctx context.Context, email, password, confirmPassword string) error
}

// SessionStarter はアクセストークンからセッションを開始する。
type SessionStarter interface {
	Begin(ctx context.Context, token string) (*model.Session, error)
}

// Form は認証フォームの入力値。
type Form struct {
	Mode            Mode
	Email           string
	Password        string
	ConfirmPassword string
}

// Result はSubmitの結果。画面の次の状態を表す。
type Result struct {
	// Mode は次に表示するモード。登録成功時はログインに切り替わる。
	Mode Mode
	// Email は次の画面に残すメールアドレス。
	Email string
	// Notice は成功時の通知メッセージ。
	Notice string
	// Err は失敗時のエラー。model.UserMessageで表示用メッセージを取り出す。
	Err error
	// Session はログインでトークンを受け取った場合に開始したセッション。
	Session *model.Session
}

// Flow は認証フォームの送信を処理する。
type Flow struct {
	users    UserAPI
	sessions SessionStarter
}

// NewFlow はFlowを生成する。
func NewFlow(users UserAPI, sessions SessionStarter) *Flow {
	return &Flow{users: users, sessions: sessions}
}

// Submit はフォームを送信する。
// パスワードは画面に戻さないため、Resultには含めない。
// 登録時にパスワードと確認用パスワードが一致しない場合は通信せずにエラーを返す。
func (f *Flow) Submit(ctx context.Context, form Form) Result {
	res := Result{Mode: form.Mode, Email: form.Email}

	switch form.Mode {
	case ModeRegister:
		if form.Password != form.ConfirmPassword {
			res.Err = model.NewPasswordMismatchError()
			return res
		}
		if err := f.users.Register(ctx, form.Email, form.Password, form.ConfirmPassword); err != nil {
			res.Err = err
			return res
		}
		slog.Info("user registered")
		res.Mode = ModeLogin
		res.Notice = MsgRegistered
		return res

	default:
		res.Mode = ModeLogin
		out, err := f.users.Login(ctx, form.Email, form.Password)
		if err != nil {
			res.Err = err
			return res
		}
		res.Notice = MsgLoggedIn
		if out.AccessToken == "" {
			// トークンがない場合は通知のみで画面は遷移しない
			slog.Warn("login succeeded without access token")
			return res
		}
		s, err := f.sessions.Begin(ctx, out.AccessToken)
		if err != nil {
			res.Notice = ""
			res.Err = model.NewNetworkError(fmt.Errorf("failed to begin session: %w", err), model.MsgRequestFailed)
			return res
		}
		res.Session = s
		return res
	}
}
