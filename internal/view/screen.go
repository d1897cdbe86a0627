package view

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/model"
)

// screen は表形式・カード形式に共通する画面状態。
// 所有アイテムのキャッシュ、アクティブ化スコープ、モーダル、実行中マーカー、通知を持つ。
//
// 上流への通信中はロックを解放し、通信完了後にスコープ世代を比較して結果を反映する。
type screen struct {
	mu sync.Mutex

	collection Collection
	catalog    Catalog
	metrics    metrics.MetricsCollector
	sampleSize int

	items    []model.Pokemon
	loaded   bool
	modal    Modal
	modalSeq uint64
	busy     map[busyKey]struct{}
	notices  map[Action]Notice

	active bool
	gen    uint64
	scope  context.Context
	cancel context.CancelFunc

	// onActivate と onDeactivate は画面ごとの状態をリセットする。ロック保持中に呼ばれる。
	onActivate   func()
	onDeactivate func()
}

func newScreen(deps Deps) *screen {
	return &screen{
		collection: deps.Collection,
		catalog:    deps.Catalog,
		metrics:    metrics.OrNoop(deps.Metrics),
		sampleSize: deps.SampleSize,
		busy:       make(map[busyKey]struct{}),
		notices:    make(map[Action]Notice),
	}
}

// op はスコープ内で実行中の操作。
type op struct {
	ctx  context.Context
	gen  uint64
	key  busyKey
	stop func()
}

// beginLocked は操作を開始する。同じキーの操作が実行中ならErrBusyを返す。
// 操作のコンテキストはリクエストとスコープのどちらが終了してもキャンセルされる。
func (s *screen) beginLocked(ctx context.Context, action Action, id int) (*op, error) {
	if !s.active {
		return nil, ErrInactive
	}
	key := busyKey{gen: s.gen, action: action, id: id}
	if _, ok := s.busy[key]; ok {
		return nil, ErrBusy
	}
	s.busy[key] = struct{}{}
	delete(s.notices, action)

	opCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(s.scope, cancel)
	return &op{
		ctx: opCtx,
		gen: s.gen,
		key: key,
		stop: func() {
			stopAfter()
			cancel()
		},
	}, nil
}

// endLocked は操作を終了し、結果を反映してよい（スコープが変わっていない）かを返す。
// beginWriteLocked はキャッシュを更新する操作を開始する。
// 読み込みに成功するまではキャッシュとサーバーが一致しないため拒否する。
func (s *screen) beginWriteLocked(ctx context.Context, action Action, id int) (*op, error) {
	if s.active && !s.loaded {
		return nil, ErrNotLoaded
	}
	return s.beginLocked(ctx, action, id)
}

func (s *screen) endLocked(o *op) bool {
	o.stop()
	delete(s.busy, o.key)
	return o.gen == s.gen && s.active
}

func (s *screen) setModalLocked(m Modal) {
	s.modal = m
	s.modalSeq++
}

// Activate は新しいスコープで画面をアクティブにし、所有アイテムを読み込む。
// 前のスコープで実行中の操作はキャンセルされ、その結果は破棄される。
func (s *screen) Activate(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	s.resetScopeLocked()
	s.active = true
	if s.onActivate != nil {
		s.onActivate()
	}
	s.mu.Unlock()

	return s.Load(ctx, sess)
}

// EnsureActive は画面がアクティブでなければActivateする。
// アクティブでも未読み込みで読み込み中でなければ、同じスコープのまま読み込み直す。
func (s *screen) EnsureActive(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	active, loaded := s.active, s.loaded
	_, loading := s.busy[busyKey{gen: s.gen, action: ActionLoad}]
	s.mu.Unlock()
	switch {
	case !active:
		return s.Activate(ctx, sess)
	case loaded || loading:
		return nil
	}
	return s.Load(ctx, sess)
}

// Deactivate はスコープをキャンセルし画面を非アクティブにする。
func (s *screen) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetScopeLocked()
	if s.onDeactivate != nil {
		s.onDeactivate()
	}
}

// Active は画面がアクティブかどうかを返す。
func (s *screen) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *screen) resetScopeLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.scope, s.cancel = context.WithCancel(context.Background())
	s.active = false
	s.items = nil
	s.loaded = false
	s.setModalLocked(Modal{})
	clear(s.notices)
}

// Load は所有アイテムを読み込み、キャッシュを置き換える。
func (s *screen) Load(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	o, err := s.beginLocked(ctx, ActionLoad, 0)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	items, err := s.collection.List(o.ctx, sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(o) {
		return ErrStale
	}
	if err != nil {
		if !model.IsAuthError(err) {
			s.notices[ActionLoad] = errorNotice(err, model.MsgLoadFailed)
		}
		return err
	}
	s.items = items
	s.loaded = true
	return nil
}

// OpenDetail は所有アイテムの詳細モーダルを開く。
func (s *screen) OpenDetail(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	s.setModalLocked(Modal{Kind: ModalDetail, Item: item, Owned: true})
	return nil
}

// CloseModal はモーダルを閉じる。
func (s *screen) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setModalLocked(Modal{})
}

// OpenCatchPicker は捕獲候補モーダルを開き、カタログからランダムに候補を取得する。
// 取得に失敗した場合はモーダルを開いたままエラーを表示する。
func (s *screen) OpenCatchPicker(ctx context.Context) error {
	s.mu.Lock()
	o, err := s.beginLocked(ctx, ActionSample, 0)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	picker := &CatchPicker{Loading: true}
	s.setModalLocked(Modal{Kind: ModalCatchPicker, Picker: picker})
	seq := s.modalSeq
	s.mu.Unlock()

	candidates, err := s.catalog.SampleRandom(o.ctx, s.sampleSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(o) {
		return ErrStale
	}
	if s.modalSeq != seq {
		// 候補取得中にモーダルが閉じられた
		return nil
	}
	picker.Loading = false
	if err != nil {
		picker.Err = model.UserMessage(err, model.MsgSampleFailed)
		return err
	}
	picker.Candidates = candidates
	return nil
}

// SelectCandidate は捕獲候補を名前で選択する。
func (s *screen) SelectCandidate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modal.Kind != ModalCatchPicker || s.modal.Picker.Loading {
		return ErrNoCandidate
	}
	if _, ok := s.modal.Picker.candidate(name); !ok {
		return ErrNoCandidate
	}
	s.modal.Picker.Selected = name
	return nil
}

// ConfirmCatch は選択中の候補をコレクションに追加する。
// 成功時はサービスが返したアイテムをキャッシュに追加してモーダルを閉じる。
// 失敗時はモーダルを開いたままエラーを表示する。
func (s *screen) ConfirmCatch(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	if s.modal.Kind != ModalCatchPicker || s.modal.Picker.Selected == "" {
		s.mu.Unlock()
		return ErrNoCandidate
	}
	picker := s.modal.Picker
	candidate, ok := picker.candidate(picker.Selected)
	if !ok {
		s.mu.Unlock()
		return ErrNoCandidate
	}
	seq := s.modalSeq
	o, err := s.beginWriteLocked(ctx, ActionCatch, candidate.CatalogID())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	picker.Err = ""
	s.mu.Unlock()

	created, err := s.collection.CreateFromCatalog(o.ctx, sess, candidate)
	s.metrics.RecordCatch(err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(o) {
		return ErrStale
	}
	if err != nil {
		if model.IsAuthError(err) {
			return err
		}
		n := errorNotice(err, model.MsgCatchFailed)
		if s.modalSeq == seq {
			picker.Err = n.Message
		}
		s.notices[ActionCatch] = n
		return err
	}
	s.items = append(s.items, created)
	if s.modalSeq == seq {
		s.setModalLocked(Modal{})
	}
	s.notices[ActionCatch] = successNotice("%s を捕まえました。", created.Name)
	slog.Info("pokemon caught", slog.Int("pokemon_id", created.ID))
	return nil
}

// OpenReleaseConfirm は所有アイテムを逃がす確認モーダルを開く。
func (s *screen) OpenReleaseConfirm(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	s.setModalLocked(Modal{Kind: ModalReleaseConfirm, Item: item, Owned: true})
	return nil
}

// ConfirmRelease は確認モーダルの対象をコレクションから削除する。
// 成功時はキャッシュから対象IDを取り除き、モーダルを閉じる。
func (s *screen) ConfirmRelease(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	if s.modal.Kind != ModalReleaseConfirm {
		s.mu.Unlock()
		return ErrNotFound
	}
	target := s.modal.Item
	seq := s.modalSeq
	o, err := s.beginWriteLocked(ctx, ActionRelease, target.ID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.modal.Err = ""
	s.mu.Unlock()

	err = s.collection.Release(o.ctx, sess, target.ID)
	s.metrics.RecordRelease(err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(o) {
		return ErrStale
	}
	if err != nil {
		if model.IsAuthError(err) {
			return err
		}
		n := errorNotice(err, model.MsgReleaseFailed)
		if s.modalSeq == seq {
			s.modal.Err = n.Message
		}
		s.notices[ActionRelease] = n
		return err
	}
	s.items = slices.DeleteFunc(s.items, func(p model.Pokemon) bool { return p.ID == target.ID })
	if s.modalSeq == seq {
		s.setModalLocked(Modal{})
	}
	s.notices[ActionRelease] = successNotice("%s を逃がしました。", target.Name)
	slog.Info("pokemon released", slog.Int("pokemon_id", target.ID))
	return nil
}

// Items は所有アイテムのコピーを返す。
func (s *screen) Items() []model.Pokemon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Busy は指定の操作が実行中かどうかを返す。
func (s *screen) Busy(action Action, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.busy[busyKey{gen: s.gen, action: action, id: id}]
	return ok
}

func (s *screen) findLocked(id int) (model.Pokemon, bool) {
	for _, p := range s.items {
		if p.ID == id {
			return p, true
		}
	}
	return model.Pokemon{}, false
}

// Common は両画面のスナップショットに共通する部分。
type Common struct {
	Loaded  bool
	Owned   int
	Types   []string
	Modal   Modal
	Notices map[Action]Notice
}

func (s *screen) commonLocked() Common {
	return Common{
		Loaded:  s.loaded,
		Owned:   len(s.items),
		Types:   distinctTypes(s.items),
		Modal:   s.modal.clone(),
		Notices: maps.Clone(s.notices),
	}
}

// Notice はテンプレートから操作ごとの通知を取り出す。
func (c Common) Notice(action string) *Notice {
	n, ok := c.Notices[Action(action)]
	if !ok {
		return nil
	}
	return &n
}

// distinctTypes は所有アイテムのタイプを重複なく昇順で返す。
func distinctTypes(items []model.Pokemon) []string {
	seen := make(map[string]struct{})
	for _, p := range items {
		for _, t := range p.Types {
			seen[t] = struct{}{}
		}
	}
	types := slices.Collect(maps.Keys(seen))
	slices.SortFunc(types, cmp.Compare[string])
	return types
}

// IsStale は結果破棄やビジー拒否など、画面に表示しないエラーかどうかを判定する。
func IsStale(err error) bool {
	return errors.Is(err, ErrStale) || errors.Is(err, ErrBusy)
}
