package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/repository"
)

type failingRepo struct {
	repository.SessionRepository
	err error
}

func (f *failingRepo) Create(context.Context, *model.Session) error { return f.err }

func TestBegin_PersistsTokenAndLookupReturnsIt(t *testing.T) {
	ctx := context.Background()
	m := NewManager(repository.NewMemorySessionRepo(), 0)

	s, err := m.Begin(ctx, "tok-abc")
	if err != nil {
		t.Fatalf("Begin がエラーを返した: %v", err)
	}
	if len(s.ID) != 64 {
		t.Errorf("セッションIDの長さ = %d, want 64", len(s.ID))
	}
	if !s.ExpiresAt.IsZero() {
		t.Error("maxAge=0 の場合は有効期限を設定しないべき")
	}

	got, err := m.Lookup(ctx, s.ID)
	if err != nil {
		t.Fatalf("Lookup がエラーを返した: %v", err)
	}
	if got == nil || got.Token != "tok-abc" {
		t.Fatalf("Lookup = %+v, want token tok-abc", got)
	}
}

func TestBegin_EmptyToken_ReturnsError(t *testing.T) {
	m := NewManager(repository.NewMemorySessionRepo(), 0)
	if _, err := m.Begin(context.Background(), ""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("Begin(\"\") err = %v, want ErrEmptyToken", err)
	}
}

func TestBegin_WithMaxAge_SetsExpiry(t *testing.T) {
	m := NewManager(repository.NewMemorySessionRepo(), time.Hour)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	s, err := m.Begin(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Begin がエラーを返した: %v", err)
	}
	if !s.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, fixed.Add(time.Hour))
	}
}

func TestBegin_RepoError_IsWrapped(t *testing.T) {
	repoErr := errors.New("db down")
	m := NewManager(&failingRepo{err: repoErr}, 0)

	if _, err := m.Begin(context.Background(), "tok"); !errors.Is(err, repoErr) {
		t.Errorf("Begin err = %v, want wrapped repo error", err)
	}
}

func TestEnd_RemovesSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(repository.NewMemorySessionRepo(), 0)
	s, _ := m.Begin(ctx, "tok")

	if err := m.End(ctx, s.ID); err != nil {
		t.Fatalf("End がエラーを返した: %v", err)
	}
	got, err := m.Lookup(ctx, s.ID)
	if err != nil {
		t.Fatalf("Lookup がエラーを返した: %v", err)
	}
	if got != nil {
		t.Error("End 後のセッションは存在しないべき")
	}
}

func TestLookup_EmptyID_ReturnsNil(t *testing.T) {
	m := NewManager(repository.NewMemorySessionRepo(), 0)
	got, err := m.Lookup(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("Lookup(\"\") = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("セッション未注入のコンテキストはnilを返すべき")
	}
	s := &model.Session{ID: "x", Token: "y"}
	if got := FromContext(NewContext(context.Background(), s)); got != s {
		t.Errorf("FromContext = %v, want %v", got, s)
	}
}
