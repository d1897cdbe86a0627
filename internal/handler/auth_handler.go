// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/pokedex/internal/auth"
	"github.com/hitoshi/pokedex/internal/middleware"
	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/session"
	"github.com/hitoshi/pokedex/internal/view"
)

// AuthSubmitter は認証フォームの送信処理。
type AuthSubmitter interface {
	Submit(ctx context.Context, form auth.Form) auth.Result
}

// SessionEnder はセッションを破棄する。
type SessionEnder interface {
	End(ctx context.Context, id string) error
}

// ViewRegistry はセッションごとの画面状態を管理する。
type ViewRegistry interface {
	Get(sessionID string) *view.Views
	Close(sessionID string)
}

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒。0の場合はブラウザを閉じるまで
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (c CookieConfig) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    id,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (c CookieConfig) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// authState は認証画面のテンプレートに渡す状態。
type authState struct {
	Mode   auth.Mode
	Email  string
	Notice string
	Error  string
}

// IsRegister は新規登録モードかどうかを返す。
func (s authState) IsRegister() bool {
	return s.Mode == auth.ModeRegister
}

// AuthHandler はログイン・新規登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	flow     AuthSubmitter
	sessions SessionEnder
	views    ViewRegistry
	cookies  CookieConfig
	render   *Renderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow AuthSubmitter, sessions SessionEnder, views ViewRegistry, cookies CookieConfig, render *Renderer) *AuthHandler {
	return &AuthHandler{
		flow:     flow,
		sessions: sessions,
		views:    views,
		cookies:  cookies,
		render:   render,
	}
}

// Page は認証画面を表示する。ログイン済みの場合はダッシュボードへリダイレクトする。
// GET /?mode=login|register
func (h *AuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	st := authState{Mode: auth.ParseMode(r.URL.Query().Get("mode"))}
	h.renderAuth(w, r, http.StatusOK, st)
}

// Submit は認証フォームを送信する。
// ログインでセッションが開始された場合はCookieを設定してダッシュボードへリダイレクトし、
// それ以外は結果を認証画面に表示する。パスワードは画面に戻さない。
// POST /auth/submit
func (h *AuthHandler) Submit(w http.ResponseWriter, r *http.Request) {
	form := auth.Form{
		Mode:            auth.ParseMode(r.PostFormValue("mode")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	res := h.flow.Submit(r.Context(), form)
	if res.Session != nil {
		h.cookies.setSessionCookie(w, res.Session.ID)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	st := authState{Mode: res.Mode, Email: res.Email, Notice: res.Notice}
	status := http.StatusOK
	if res.Err != nil {
		st.Error = model.UserMessage(res.Err, model.MsgRequestFailed)
		status = http.StatusUnprocessableEntity
		slog.Warn("auth submit failed",
			slog.String("mode", string(form.Mode)),
			slog.String("error", res.Err.Error()),
		)
	}
	h.renderAuth(w, r, status, st)
}

// Logout はセッションと画面状態を破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		h.views.Close(cookie.Value)
		if endErr := h.sessions.End(r.Context(), cookie.Value); endErr != nil {
			slog.Error("failed to logout", slog.String("error", endErr.Error()))
			// 破棄に失敗してもCookieはクリアする
		}
	}

	h.cookies.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) renderAuth(w http.ResponseWriter, r *http.Request, status int, st authState) {
	title := "ログイン"
	if st.IsRegister() {
		title = "新規登録"
	}
	h.render.render(w, r, status, pageAuth, pageData{Title: title, State: st})
}
