package view

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Views はセッション1つ分の画面状態。
type Views struct {
	Table *TableView
	Cards *CardView

	lastAccess time.Time
}

// Registry はセッションIDごとの画面状態を管理する。
// 画面状態は初回アクセス時に生成し、ログアウト時またはアイドル時間経過後に破棄する。
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*Views
}

// NewRegistry はRegistryを生成する。idleTTLが0以下の場合はアイドルで破棄しない。
func NewRegistry(deps Deps, idleTTL time.Duration) *Registry {
	return &Registry{
		deps:    deps,
		idleTTL: idleTTL,
		now:     time.Now,
		views:   make(map[string]*Views),
	}
}

// Get はセッションの画面状態を取得する。存在しない場合は生成する。
func (r *Registry) Get(sessionID string) *Views {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.views[sessionID]
	if !ok {
		v = &Views{
			Table: NewTableView(r.deps),
			Cards: NewCardView(r.deps),
		}
		r.views[sessionID] = v
	}
	v.lastAccess = r.now()
	return v
}

// Close はセッションの画面状態を非アクティブにして破棄する。
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()

	if ok {
		v.Table.Deactivate()
		v.Cards.Deactivate()
	}
}

// Len は管理中のセッション数を返す。テスト用。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep は最終アクセスからidleTTLを超えた画面状態を破棄し、破棄した件数を返す。
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	var idle []*Views
	for id, v := range r.views {
		if now.Sub(v.lastAccess) > r.idleTTL {
			idle = append(idle, v)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		v.Table.Deactivate()
		v.Cards.Deactivate()
	}
	return len(idle)
}

// Run はctxが終了するまでintervalごとにSweepする。
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("idle views swept", slog.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
