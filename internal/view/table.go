package view

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hitoshi/pokedex/internal/model"
)

// SortField は表のソートキー。
type SortField string

const (
	SortByID     SortField = "id"
	SortByName   SortField = "name"
	SortByHeight SortField = "height"
	SortByWeight SortField = "weight"
)

// ParseSortField は文字列をSortFieldに変換する。
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(s); f {
	case SortByID, SortByName, SortByHeight, SortByWeight:
		return f, true
	}
	return "", false
}

// PageSizes は選択可能なページサイズ。
var PageSizes = []int{5, 10, 20, 50}

// DefaultPageSize はデフォルトのページサイズ。
const DefaultPageSize = 10

// PageNav はページ移動の指定。
type PageNav string

const (
	PageFirst PageNav = "first"
	PagePrev  PageNav = "prev"
	PageNext  PageNav = "next"
	PageLast  PageNav = "last"
)

// TableView は表形式のコレクション画面。
// 名前・タイプでの絞り込み、ソート、ページング、捕獲候補の選択、手入力での登録を提供する。
type TableView struct {
	*screen

	collator  *collate.Collator
	filter    string
	sortField SortField
	sortDesc  bool
	page      int
	pageSize  int
	manual    ManualForm
}

// NewTableView はTableViewを生成する。
func NewTableView(deps Deps) *TableView {
	t := &TableView{
		screen:   newScreen(deps),
		collator: collate.New(language.Und),
	}
	t.resetLocked()
	t.onActivate = t.resetLocked
	return t
}

func (t *TableView) resetLocked() {
	t.filter = ""
	t.sortField = SortByID
	t.sortDesc = false
	t.page = 1
	t.pageSize = DefaultPageSize
	t.manual = ManualForm{}
}

// SetFilter は絞り込み文字列を設定し、1ページ目に戻る。
func (t *TableView) SetFilter(q string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = q
	t.page = 1
}

// ToggleSort はソートキーを切り替える。
// 現在と同じキーなら昇順・降順を反転し、別のキーなら昇順から始める。
func (t *TableView) ToggleSort(field SortField) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if field == t.sortField {
		t.sortDesc = !t.sortDesc
		return
	}
	t.sortField = field
	t.sortDesc = false
}

// SetPageSize はページサイズを設定し、1ページ目に戻る。
func (t *TableView) SetPageSize(size int) error {
	if !slices.Contains(PageSizes, size) {
		return model.NewInvalidInputError(fmt.Sprintf("ページサイズ %d は選択できません", size))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageSize = size
	t.page = 1
	return nil
}

// SetPage は指定ページに移動する。範囲外は最初または最後のページに丸める。
func (t *TableView) SetPage(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = clampPage(page, t.totalPagesLocked())
}

// Navigate は最初・前・次・最後のページに移動する。
func (t *TableView) Navigate(nav PageNav) {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.totalPagesLocked()
	current := clampPage(t.page, total)
	switch nav {
	case PageFirst:
		current = 1
	case PagePrev:
		current--
	case PageNext:
		current++
	case PageLast:
		current = total
	}
	t.page = clampPage(current, total)
}

func (t *TableView) totalPagesLocked() int {
	return totalPages(len(filterItems(t.items, t.filter)), t.pageSize)
}

// CatchManual は手入力の値をそのままコレクションに追加する。
// 入力が不正な場合は通信せずにエラー通知を設定する。
func (t *TableView) CatchManual(ctx context.Context, sess *model.Session, form ManualForm) error {
	np, verr := form.Parse()

	t.mu.Lock()
	t.manual = form
	if verr != nil {
		t.notices[ActionManual] = errorNotice(verr, model.MsgCatchFailed)
		t.mu.Unlock()
		return verr
	}
	o, err := t.beginWriteLocked(ctx, ActionManual, 0)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	created, err := t.collection.Create(o.ctx, sess, np)
	t.metrics.RecordCatch(err == nil)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.endLocked(o) {
		return ErrStale
	}
	if err != nil {
		if !model.IsAuthError(err) {
			t.notices[ActionManual] = errorNotice(err, model.MsgCatchFailed)
		}
		return err
	}
	t.items = append(t.items, created)
	t.manual = ManualForm{}
	t.notices[ActionManual] = successNotice("%s を登録しました。", created.Name)
	return nil
}

// TableState はテンプレートに渡す表画面のスナップショット。
type TableState struct {
	Common

	Rows       []model.Pokemon
	Total      int
	Filter     string
	SortField  SortField
	SortDesc   bool
	Page       int
	TotalPages int
	PageSize   int
	PageSizes  []int
	Manual     ManualForm
	Releasing  map[int]bool
	Sampling   bool
}

// HasPrev は最初・前のページへ移動できるかを返す。
func (s TableState) HasPrev() bool { return s.Page > 1 }

// HasNext は次・最後のページへ移動できるかを返す。
func (s TableState) HasNext() bool { return s.Page < s.TotalPages }

// SortMark はソート中の列に表示する矢印を返す。
func (s TableState) SortMark(field string) string {
	if SortField(field) != s.SortField {
		return ""
	}
	if s.SortDesc {
		return "↓"
	}
	return "↑"
}

// Snapshot は現在の絞り込み・ソート・ページングを適用した表の状態を返す。
func (t *TableView) Snapshot() TableState {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := filterItems(t.items, t.filter)
	t.sortLocked(rows)

	total := totalPages(len(rows), t.pageSize)
	t.page = clampPage(t.page, total)
	start := min((t.page-1)*t.pageSize, len(rows))
	end := min(start+t.pageSize, len(rows))

	releasing := make(map[int]bool)
	for k := range t.busy {
		if k.gen == t.gen && k.action == ActionRelease {
			releasing[k.id] = true
		}
	}
	_, sampling := t.busy[busyKey{gen: t.gen, action: ActionSample}]

	return TableState{
		Common:     t.commonLocked(),
		Rows:       slices.Clone(rows[start:end]),
		Total:      len(rows),
		Filter:     t.filter,
		SortField:  t.sortField,
		SortDesc:   t.sortDesc,
		Page:       t.page,
		TotalPages: total,
		PageSize:   t.pageSize,
		PageSizes:  PageSizes,
		Manual:     t.manual,
		Releasing:  releasing,
		Sampling:   sampling,
	}
}

// sortLocked は安定ソートする。名前はロケールを考慮して比較する。
func (t *TableView) sortLocked(rows []model.Pokemon) {
	compare := func(a, b model.Pokemon) int {
		switch t.sortField {
		case SortByName:
			return t.collator.CompareString(a.Name, b.Name)
		case SortByHeight:
			return cmp.Compare(a.Height, b.Height)
		case SortByWeight:
			return cmp.Compare(a.Weight, b.Weight)
		default:
			return cmp.Compare(a.ID, b.ID)
		}
	}
	slices.SortStableFunc(rows, func(a, b model.Pokemon) int {
		if t.sortDesc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

// filterItems は名前またはいずれかのタイプに q を含む（大文字小文字を区別しない）アイテムを返す。
func filterItems(items []model.Pokemon, q string) []model.Pokemon {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]model.Pokemon, 0, len(items))
	for _, p := range items {
		if q == "" || matchesNameOrType(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matchesNameOrType(p model.Pokemon, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(p.Name), lowerQuery) {
		return true
	}
	return slices.ContainsFunc(p.Types, func(t string) bool {
		return strings.Contains(strings.ToLower(t), lowerQuery)
	})
}

// totalPages は ceil(n/size) を返す。
func totalPages(n, size int) int {
	if size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// clampPage はページ番号を1からtotalの範囲に丸める。totalが0の場合は1。
func clampPage(page, total int) int {
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}

// ManualForm は手入力での登録フォームの入力値。
// タイプと特性はカンマ区切り、身長はメートル、体重はキログラム。
type ManualForm struct {
	Name      string
	ImageURL  string
	Types     string
	Height    string
	Weight    string
	Abilities string
}

// Parse は入力値を検証して作成ペイロードに変換する。値の単位換算は行わない。
func (f ManualForm) Parse() (model.NewPokemon, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return model.NewPokemon{}, model.NewInvalidInputError("名前は必須です")
	}
	height, err := parseMeasure(f.Height)
	if err != nil {
		return model.NewPokemon{}, model.NewInvalidInputError("身長は0以上の数値で入力してください")
	}
	weight, err := parseMeasure(f.Weight)
	if err != nil {
		return model.NewPokemon{}, model.NewInvalidInputError("体重は0以上の数値で入力してください")
	}
	return model.NewPokemon{
		Name:      name,
		ImageURL:  strings.TrimSpace(f.ImageURL),
		Types:     splitList(f.Types),
		Height:    height,
		Weight:    weight,
		Abilities: splitList(f.Abilities),
	}, nil
}

func parseMeasure(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid measure: %v", v)
	}
	return v, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
