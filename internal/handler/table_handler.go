package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/view"
)

const tablePath = "/dashboard/pokemons"

// TableHandler は表形式の画面のHTTPハンドラー。
type TableHandler struct {
	dashboard
}

// NewTableHandler はTableHandlerを生成する。
func NewTableHandler(views ViewRegistry, sessions SessionEnder, cookies CookieConfig, render *Renderer) *TableHandler {
	return &TableHandler{dashboard{views: views, sessions: sessions, cookies: cookies, render: render}}
}

// Page は表画面を表示する。カード画面は非アクティブにする。
// GET /dashboard/pokemons
func (h *TableHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Cards.Deactivate()
	if err := v.Table.EnsureActive(r.Context(), sess); model.IsAuthError(err) {
		h.expire(w, r, sess)
		return
	}
	h.render.render(w, r, http.StatusOK, pageTable, pageData{
		Title:    "ポケモン一覧",
		Nav:      navTable,
		Base:     tablePath,
		LoggedIn: true,
		State:    v.Table.Snapshot(),
	})
}

// Filter は名前・タイプの絞り込みを設定する。
// POST /dashboard/pokemons/filter
func (h *TableHandler) Filter(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Table.SetFilter(r.PostFormValue("q"))
	h.finish(w, r, sess, nil, tablePath)
}

// Sort はソートキーを切り替える。
// POST /dashboard/pokemons/sort
func (h *TableHandler) Sort(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	field, ok := view.ParseSortField(r.PostFormValue("field"))
	if !ok {
		writeBadRequest(w, "ソート項目が不正です")
		return
	}
	v.Table.ToggleSort(field)
	h.finish(w, r, sess, nil, tablePath)
}

// Paginate はページを移動する。navがあれば最初・前・次・最後、なければpageの番号に移動する。
// POST /dashboard/pokemons/page
func (h *TableHandler) Paginate(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	if nav := r.PostFormValue("nav"); nav != "" {
		v.Table.Navigate(view.PageNav(nav))
	} else if page, err := strconv.Atoi(r.PostFormValue("page")); err == nil {
		v.Table.SetPage(page)
	}
	h.finish(w, r, sess, nil, tablePath)
}

// PageSize はページサイズを変更する。
// POST /dashboard/pokemons/page-size
func (h *TableHandler) PageSize(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	size, err := strconv.Atoi(r.PostFormValue("size"))
	if err != nil {
		writeBadRequest(w, "ページサイズが不正です")
		return
	}
	if err := v.Table.SetPageSize(size); err != nil {
		writeBadRequest(w, "ページサイズが不正です")
		return
	}
	h.finish(w, r, sess, nil, tablePath)
}

// Detail は所有アイテムの詳細モーダルを開く。
// POST /dashboard/pokemons/detail/{id}
func (h *TableHandler) Detail(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	id, ok := pathID(r)
	if !ok {
		writeInvalidID(w)
		return
	}
	h.finish(w, r, sess, v.Table.OpenDetail(id), tablePath)
}

// OpenCatch は捕獲候補モーダルを開き、候補を取得する。
// POST /dashboard/pokemons/catch/open
func (h *TableHandler) OpenCatch(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	h.finish(w, r, sess, v.Table.OpenCatchPicker(r.Context()), tablePath)
}

// SelectCandidate は捕獲候補を選択する。
// POST /dashboard/pokemons/catch/select
func (h *TableHandler) SelectCandidate(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	h.finish(w, r, sess, v.Table.SelectCandidate(r.PostFormValue("name")), tablePath)
}

// ConfirmCatch は選択中の候補を捕まえる。
// POST /dashboard/pokemons/catch/confirm
func (h *TableHandler) ConfirmCatch(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	h.finish(w, r, sess, v.Table.ConfirmCatch(r.Context(), sess), tablePath)
}

// Manual は手入力の値でポケモンを登録する。
// POST /dashboard/pokemons/manual
func (h *TableHandler) Manual(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	form := view.ManualForm{
		Name:      r.PostFormValue("name"),
		ImageURL:  r.PostFormValue("image_url"),
		Types:     r.PostFormValue("types"),
		Height:    r.PostFormValue("height"),
		Weight:    r.PostFormValue("weight"),
		Abilities: r.PostFormValue("abilities"),
	}
	h.finish(w, r, sess, v.Table.CatchManual(r.Context(), sess, form), tablePath)
}

// OpenRelease は逃がす確認モーダルを開く。
// POST /dashboard/pokemons/release/{id}
func (h *TableHandler) OpenRelease(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	id, ok := pathID(r)
	if !ok {
		writeInvalidID(w)
		return
	}
	h.finish(w, r, sess, v.Table.OpenReleaseConfirm(id), tablePath)
}

// ConfirmRelease は確認モーダルの対象を逃がす。
// POST /dashboard/pokemons/release/confirm
func (h *TableHandler) ConfirmRelease(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	h.finish(w, r, sess, v.Table.ConfirmRelease(r.Context(), sess), tablePath)
}

// CloseModal はモーダルを閉じる。
// POST /dashboard/pokemons/modal/close
func (h *TableHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	sess, v := h.current(r)
	v.Table.CloseModal()
	h.finish(w, r, sess, nil, tablePath)
}
