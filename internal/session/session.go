// Package session はブラウザセッションとバックエンドのアクセストークンの
// 対応付けを管理する。
//
// トークンはプロセス全体のグローバル変数ではなく、明示的なmodel.Sessionとして
// 必要なコンポーネントに渡される。ライフサイクルは
// Begin（ログイン成功時）→ Lookup（画面ごと）→ End（ログアウト・トークン拒否時）。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/repository"
)

// ErrEmptyToken は空のトークンでセッションを開始しようとした場合のエラー。
var ErrEmptyToken = errors.New("session: empty token")

// Manager はセッションの開始・取得・終了を行う。
type Manager struct {
	repo   repository.SessionRepository
	maxAge time.Duration
	now    func() time.Time
}

// NewManager はManagerを生成する。maxAgeが0の場合、セッションは期限切れにならない。
func NewManager(repo repository.SessionRepository, maxAge time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// MaxAge はセッションの有効期間を返す。0は無期限。
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Begin はトークンを保持する新しいセッションを作成し永続化する。
func (m *Manager) Begin(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	s := &model.Session{
		ID:        id,
		Token:     token,
		CreatedAt: now,
	}
	if m.maxAge > 0 {
		s.ExpiresAt = now.Add(m.maxAge)
	}

	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session started", slog.Time("created_at", s.CreatedAt))
	return s, nil
}

// Lookup は指定IDのセッションを返す。存在しない場合は (nil, nil) を返す。
func (m *Manager) Lookup(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}
	s, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if s == nil || s.Token == "" {
		return nil, nil
	}
	return s, nil
}

// End はセッションを破棄する。
func (m *Manager) End(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("session ended")
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
