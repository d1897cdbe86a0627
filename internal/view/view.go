// Package view はコレクション画面（表形式・カード形式）の状態を管理する。
//
// 画面状態はセッションごとに保持され、HTTPリクエスト1件がユーザー操作1件に対応する。
// 画面のアクティブ化ごとにスコープを切り替え、古いスコープで発行したリクエストの結果は破棄する。
package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/model"
)

var (
	// ErrBusy は同じ種類・同じ対象の操作がすでに実行中の場合のエラー。
	ErrBusy = errors.New("view: action already in progress")
	// ErrNoCandidate は選択された候補が存在しない場合のエラー。
	ErrNoCandidate = errors.New("view: no such candidate")
	// ErrNotFound は指定IDのアイテムが画面上に存在しない場合のエラー。
	ErrNotFound = errors.New("view: item not found")
	// ErrInactive は画面がアクティブでない場合のエラー。
	ErrInactive = errors.New("view: screen is not active")
	// ErrNotLoaded は所有アイテムの読み込みに成功していない場合のエラー。
	ErrNotLoaded = errors.New("view: collection not loaded")
	// ErrStale は操作中に画面のスコープが切り替わり、結果を破棄した場合のエラー。
	ErrStale = errors.New("view: result discarded")
)

// Collection はコレクションサービスの操作。
type Collection interface {
	List(ctx context.Context, s *model.Session) ([]model.Pokemon, error)
	Create(ctx context.Context, s *model.Session, p model.NewPokemon) (model.Pokemon, error)
	CreateFromCatalog(ctx context.Context, s *model.Session, item model.CatalogItem) (model.Pokemon, error)
	Release(ctx context.Context, s *model.Session, id int) error
}

// Catalog はカタログAPIの操作。
type Catalog interface {
	SampleRandom(ctx context.Context, n int) ([]model.CatalogItem, error)
	Search(ctx context.Context, query string) ([]model.CatalogItem, error)
}

// Deps は画面状態の生成に必要な依存関係。
type Deps struct {
	Collection     Collection
	Catalog        Catalog
	Metrics        metrics.MetricsCollector
	SampleSize     int
	SearchDebounce time.Duration
}

// Action は操作の種類。通知と実行中マーカーは種類ごとに管理する。
type Action string

const (
	ActionLoad    Action = "load"
	ActionSample  Action = "sample"
	ActionCatch   Action = "catch"
	ActionManual  Action = "manual"
	ActionRelease Action = "release"
	ActionSearch  Action = "search"
)

// Notice は操作結果の通知。
type Notice struct {
	Error   bool
	Message string
}

func successNotice(format string, args ...any) Notice {
	return Notice{Message: fmt.Sprintf(format, args...)}
}

func errorNotice(err error, fallback string) Notice {
	return Notice{Error: true, Message: model.UserMessage(err, fallback)}
}

// busyKey は実行中マーカーのキー。スコープ世代を含むため、
// 古いスコープで実行中の操作は新しいスコープの操作を妨げない。
type busyKey struct {
	gen    uint64
	action Action
	id     int
}
