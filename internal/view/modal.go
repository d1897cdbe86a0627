package view

import "github.com/hitoshi/pokedex/internal/model"

// ModalKind はモーダルの種類。
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalDetail
	ModalCatchPicker
	ModalReleaseConfirm
)

// Modal は画面に同時に1つだけ表示されるモーダル。
// 新しいモーダルを開くと前のモーダルは置き換えられる。
type Modal struct {
	Kind ModalKind

	// Item は詳細表示または解放確認の対象。
	Item model.Pokemon
	// Owned は詳細表示の対象が所有アイテムかどうか。
	Owned bool
	// Picker は捕獲候補の選択状態。KindがModalCatchPickerの場合のみ設定される。
	Picker *CatchPicker
	// Err は解放確認での失敗メッセージ。
	Err string
}

// CatchPicker はランダムに抽出した捕獲候補の選択状態。
type CatchPicker struct {
	Loading    bool
	Candidates []model.CatalogItem
	Selected   string
	Err        string
}

// Open はモーダルが表示されているかを返す。
func (m Modal) Open() bool {
	return m.Kind != ModalNone
}

// IsDetail などはテンプレートから参照する。
func (m Modal) IsDetail() bool         { return m.Kind == ModalDetail }
func (m Modal) IsCatchPicker() bool    { return m.Kind == ModalCatchPicker }
func (m Modal) IsReleaseConfirm() bool { return m.Kind == ModalReleaseConfirm }

// candidate は選択中の候補を返す。
func (p *CatchPicker) candidate(name string) (model.CatalogItem, bool) {
	for _, c := range p.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return model.CatalogItem{}, false
}

// clone はテンプレートに渡すためのコピーを返す。
func (m Modal) clone() Modal {
	if m.Picker != nil {
		p := *m.Picker
		m.Picker = &p
	}
	return m
}
