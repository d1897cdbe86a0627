package handler

import (
	"net/http"

	"github.com/hitoshi/pokedex/internal/model"
)

const cardsPath = "/dashboard"

// CardHandler はカード形式の画面のHTTPハンドラー。
// 操作はすべてPOSTで受け付け、処理後に画面へ303でリダイレクトする。
type CardHandler struct {
	dashboard
}

// NewCardHandler はCardHandlerを生成する。
func NewCardHandler(views ViewRegistry, sessions SessionEnder, cookies CookieConfig, render *Renderer) *CardHandler {
	return &CardHandler{dashboard{views: views, sessions: sessions, cookies: cookies, render: render}}
}

// Page はカード画面を表示する。表画面は非アクティブにし、カード画面が非アクティブなら読み込む。
// GET /dashboard
func (h *CardHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Table.Deactivate()
	if err := v.Cards.EnsureActive(r.Context(), sess); model.IsAuthError(err) {
		h.expire(w, r, sess)
		return
	}
	h.render.render(w, r, http.StatusOK, pageCards, pageData{
		Title:    "マイポケモン",
		Nav:      navCards,
		Base:     cardsPath,
		LoggedIn: true,
		State:    v.Cards.Snapshot(),
	})
}

// Search は検索クエリと「自分のポケモンのみ」を設定し、検索が落ち着くまで待ってからリダイレクトする。
// POST /dashboard/search
func (h *CardHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	onlyMine := r.PostFormValue("only_mine") != ""
	if v.Cards.Snapshot().OnlyMine != onlyMine {
		v.Cards.SetOnlyMine(onlyMine)
	}
	v.Cards.SetQuery(r.PostFormValue("q"))
	h.finish(w, r, sess, v.Cards.AwaitSearch(r.Context()), cardsPath)
}

// SetType はタイプ絞り込みを設定する。
// POST /dashboard/type
func (h *CardHandler) SetType(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Cards.SetType(r.PostFormValue("type"))
	h.finish(w, r, sess, nil, cardsPath)
}

// Detail は所有カードまたはカタログカードの詳細モーダルを開く。
// POST /dashboard/detail (source=owned|catalog, id)
func (h *CardHandler) Detail(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	id, ok := formID(r)
	if !ok {
		writeInvalidID(w)
		return
	}
	var err error
	if r.PostFormValue("source") == "catalog" {
		err = v.Cards.OpenCatalogDetail(id)
	} else {
		err = v.Cards.OpenDetail(id)
	}
	h.finish(w, r, sess, err, cardsPath)
}

// Catch は検索結果のカタログアイテムを捕まえる。
// POST /dashboard/catch/{id}
func (h *CardHandler) Catch(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	id, ok := pathID(r)
	if !ok {
		writeInvalidID(w)
		return
	}
	h.finish(w, r, sess, v.Cards.Catch(r.Context(), sess, id), cardsPath)
}

// OpenRelease は逃がす確認モーダルを開く。
// POST /dashboard/release/{id}
func (h *CardHandler) OpenRelease(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	id, ok := pathID(r)
	if !ok {
		writeInvalidID(w)
		return
	}
	h.finish(w, r, sess, v.Cards.OpenReleaseConfirm(id), cardsPath)
}

// ConfirmRelease は確認モーダルの対象を逃がす。
// POST /dashboard/release/confirm
func (h *CardHandler) ConfirmRelease(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	h.finish(w, r, sess, v.Cards.ConfirmRelease(r.Context(), sess), cardsPath)
}

// CloseModal はモーダルを閉じる。
// POST /dashboard/modal/close
func (h *CardHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Cards.CloseModal()
	h.finish(w, r, sess, nil, cardsPath)
}
