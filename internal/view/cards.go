package view

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/hitoshi/pokedex/internal/model"
)

// TypeAll はタイプ絞り込みなしを表す。
const TypeAll = "all"

// 空状態のメッセージ
const (
	EmptyNoSearchMatch = "検索に一致するポケモンがいません。"
	EmptyNoTypeMatch   = "このタイプのポケモンはいません。"
	EmptyNoItems       = "まだポケモンを捕まえていません。"
)

// CardView はカード形式のコレクション画面。
// 名前検索（デバウンスあり）、「自分のポケモンのみ」切り替え、タイプ絞り込み、
// 検索結果からの直接捕獲を提供する。
type CardView struct {
	*screen

	debouncer *Debouncer

	query      string
	onlyMine   bool
	typeFilter string

	results    []model.CatalogItem
	searching  bool
	searchSeq  uint64
	settled    chan struct{}
	stopSearch context.CancelFunc
}

// NewCardView はCardViewを生成する。
func NewCardView(deps Deps) *CardView {
	c := &CardView{
		screen:     newScreen(deps),
		debouncer:  NewDebouncer(deps.SearchDebounce),
		typeFilter: TypeAll,
	}
	c.onActivate = c.resetLocked
	c.onDeactivate = c.resetLocked
	return c
}

func (c *CardView) resetLocked() {
	c.clearSearchLocked()
	c.onlyMine = false
	c.typeFilter = TypeAll
}

// clearSearchLocked はクエリと検索結果を消去し、待機中・実行中の検索を破棄する。
func (c *CardView) clearSearchLocked() {
	c.debouncer.Cancel()
	if c.stopSearch != nil {
		c.stopSearch()
		c.stopSearch = nil
	}
	c.searchSeq++
	c.query = ""
	c.results = nil
	c.settleLocked()
}

func (c *CardView) settleLocked() {
	c.searching = false
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

// SetQuery は検索クエリを設定する。
// 「自分のポケモンのみ」が無効な場合は、デバウンス後にカタログを検索する。
// 待機中の検索は新しいクエリで破棄される。
func (c *CardView) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.debouncer.Cancel()
	if c.stopSearch != nil {
		c.stopSearch()
		c.stopSearch = nil
	}
	c.searchSeq++
	c.query = query
	delete(c.notices, ActionSearch)
	// 前のクエリを待っているリクエストは新しいクエリを待ち直す
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}

	q := strings.TrimSpace(query)
	if q == "" || c.onlyMine || !c.active {
		c.results = nil
		c.searching = false
		return
	}

	c.searching = true
	c.settled = make(chan struct{})
	seq := c.searchSeq
	c.debouncer.Schedule(func() { c.runSearch(seq, q) })
}

// runSearch はデバウンス後に検索を実行する。新しいクエリがあれば結果を破棄する。
func (c *CardView) runSearch(seq uint64, q string) {
	c.mu.Lock()
	if seq != c.searchSeq || !c.active {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.scope)
	c.stopSearch = cancel
	c.mu.Unlock()
	defer cancel()

	items, err := c.catalog.Search(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.searchSeq {
		return
	}
	c.stopSearch = nil
	if err != nil {
		slog.Warn("catalog search failed", slog.String("error", err.Error()))
		c.results = nil
		c.notices[ActionSearch] = errorNotice(err, model.MsgSearchFailed)
	} else {
		c.results = items
	}
	c.settleLocked()
}

// AwaitSearch は最新のクエリの検索が完了するまで待つ。
func (c *CardView) AwaitSearch(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.searching {
			c.mu.Unlock()
			return nil
		}
		ch := c.settled
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetOnlyMine は「自分のポケモンのみ」を切り替え、現在のクエリで検索し直す。
func (c *CardView) SetOnlyMine(on bool) {
	c.mu.Lock()
	c.onlyMine = on
	q := c.query
	c.mu.Unlock()
	c.SetQuery(q)
}

// SetType はタイプ絞り込みを設定する。不明なタイプはallとして扱う。
func (c *CardView) SetType(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == "" || !slices.Contains(distinctTypes(c.items), t) {
		t = TypeAll
	}
	c.typeFilter = t
}

// OpenCatalogDetail は検索結果のカタログアイテムの詳細モーダルを開く。
func (c *CardView) OpenCatalogDetail(catalogID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.resultLocked(catalogID)
	if !ok {
		return ErrNotFound
	}
	c.setModalLocked(Modal{Kind: ModalDetail, Item: item.Preview()})
	return nil
}

// Catch は検索結果のカタログアイテムを直接コレクションに追加する。
// 成功時はキャッシュに追加し、クエリと検索結果を消去してタイプ絞り込みをallに戻す。
func (c *CardView) Catch(ctx context.Context, sess *model.Session, catalogID int) error {
	c.mu.Lock()
	item, ok := c.resultLocked(catalogID)
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	o, err := c.beginWriteLocked(ctx, ActionCatch, catalogID)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	created, err := c.collection.CreateFromCatalog(o.ctx, sess, item)
	c.metrics.RecordCatch(err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.endLocked(o) {
		return ErrStale
	}
	if err != nil {
		if !model.IsAuthError(err) {
			c.notices[ActionCatch] = errorNotice(err, model.MsgCatchFailed)
		}
		return err
	}
	c.items = append(c.items, created)
	c.clearSearchLocked()
	c.typeFilter = TypeAll
	c.notices[ActionCatch] = successNotice("%s を捕まえました。", created.Name)
	slog.Info("pokemon caught", slog.Int("pokemon_id", created.ID))
	return nil
}

func (c *CardView) resultLocked(catalogID int) (model.CatalogItem, bool) {
	for _, r := range c.results {
		if r.CatalogID() == catalogID {
			return r, true
		}
	}
	return model.CatalogItem{}, false
}

// Card はカード1枚分の表示内容。
// Busyは所有カードでは解放中、カタログカードでは捕獲中を表す。
type Card struct {
	Pokemon   model.Pokemon
	Owned     bool
	CatalogID int
	Busy      bool
}

func (c *CardView) ownedCardLocked(p model.Pokemon) Card {
	_, busy := c.busy[busyKey{gen: c.gen, action: ActionRelease, id: p.ID}]
	return Card{Pokemon: p, Owned: true, Busy: busy}
}

// CardState はテンプレートに渡すカード画面のスナップショット。
type CardState struct {
	Common

	Cards      []Card
	Query      string
	OnlyMine   bool
	TypeFilter string
	Searching  bool
	Empty      string
}

// Snapshot は現在の検索・絞り込みを適用したカード画面の状態を返す。
func (c *CardView) Snapshot() CardState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CardState{
		Common:     c.commonLocked(),
		Query:      c.query,
		OnlyMine:   c.onlyMine,
		TypeFilter: c.typeFilter,
		Searching:  c.searching,
	}

	q := strings.ToLower(strings.TrimSpace(c.query))
	switch {
	case q != "" && c.onlyMine:
		for _, p := range c.items {
			if strings.Contains(strings.ToLower(p.Name), q) {
				st.Cards = append(st.Cards, c.ownedCardLocked(p))
			}
		}
		if len(st.Cards) == 0 {
			st.Empty = EmptyNoSearchMatch
		}

	case q != "":
		for _, r := range c.results {
			id := r.CatalogID()
			_, busy := c.busy[busyKey{gen: c.gen, action: ActionCatch, id: id}]
			st.Cards = append(st.Cards, Card{Pokemon: r.Preview(), CatalogID: id, Busy: busy})
		}
		if len(st.Cards) == 0 && !c.searching {
			st.Empty = EmptyNoSearchMatch
		}

	default:
		for _, p := range c.items {
			if c.typeFilter == TypeAll || slices.Contains(p.Types, c.typeFilter) {
				st.Cards = append(st.Cards, c.ownedCardLocked(p))
			}
		}
		if len(st.Cards) == 0 {
			if c.typeFilter != TypeAll && len(c.items) > 0 {
				st.Empty = EmptyNoTypeMatch
			} else {
				st.Empty = EmptyNoItems
			}
		}
	}

	return st
}
