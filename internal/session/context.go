package session

import (
	"context"

	"github.com/hitoshi/pokedex/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey struct{}

// NewContext はセッションを注入したコンテキストを返す。
func NewContext(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからセッションを取り出す。存在しない場合はnil。
func FromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(contextKey{}).(*model.Session)
	return s
}
