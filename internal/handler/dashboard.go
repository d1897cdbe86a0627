package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pokedex/internal/middleware"
	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/session"
	"github.com/hitoshi/pokedex/internal/view"
)

// dashboard はカード画面と表画面のハンドラーに共通する処理。
type dashboard struct {
	views    ViewRegistry
	sessions SessionEnder
	cookies  CookieConfig
	render   *Renderer
}

// current はリクエストのセッションと画面状態を返す。
// セッションミドルウェアの内側でのみ呼び出す。
func (d *dashboard) current(r *http.Request) (*model.Session, *view.Views) {
	sess := session.FromContext(r.Context())
	return sess, d.views.Get(sess.ID)
}

// expire はバックエンドにトークンを拒否されたセッションを破棄し、認証画面へ戻す。
func (d *dashboard) expire(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	slog.Info("session rejected, signing out",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	d.views.Close(sess.ID)
	if err := d.sessions.End(r.Context(), sess.ID); err != nil {
		slog.Error("failed to end session", slog.String("error", err.Error()))
	}
	d.cookies.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// finish は操作の結果に応じて画面へリダイレクトする。
// 表示すべき失敗は画面状態の通知に記録済みのため、ここではログのみ出力する。
func (d *dashboard) finish(w http.ResponseWriter, r *http.Request, sess *model.Session, err error, back string) {
	switch {
	case err == nil:
	case model.IsAuthError(err):
		d.expire(w, r, sess)
		return
	case view.IsStale(err), errors.Is(err, context.Canceled):
		slog.Debug("action result discarded", slog.String("error", err.Error()))
	case errors.Is(err, view.ErrInactive), errors.Is(err, view.ErrNotLoaded), errors.Is(err, view.ErrNotFound), errors.Is(err, view.ErrNoCandidate):
		slog.Debug("action ignored", slog.String("error", err.Error()))
	default:
		slog.Warn("action failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// pathID はURLパラメータ {id} を整数として取り出す。
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formID はフォーム値 id を整数として取り出す。
func formID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PostFormValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeInvalidID(w http.ResponseWriter) {
	writeBadRequest(w, "IDが不正です")
}

func writeBadRequest(w http.ResponseWriter, reason string) {
	middleware.WriteBadRequest(w, reason)
}
