package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/pokedex/internal/auth"
	"github.com/hitoshi/pokedex/internal/middleware"
	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/view"
)

const (
	testCSRFToken = "csrf-test-token"
	testSessionID = "sid-1"
)

// --- モック ---

type mockAuthFlow struct {
	mu       sync.Mutex
	forms    []auth.Form
	submitFn func(ctx context.Context, form auth.Form) auth.Result
}

func (m *mockAuthFlow) Submit(ctx context.Context, form auth.Form) auth.Result {
	m.mu.Lock()
	m.forms = append(m.forms, form)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, form)
	}
	return auth.Result{Mode: form.Mode, Email: form.Email}
}

type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	ended    []string
}

func newMockSessions(ids ...string) *mockSessions {
	m := &mockSessions{sessions: make(map[string]*model.Session)}
	for _, id := range ids {
		m.sessions[id] = &model.Session{ID: id, Token: "tok-" + id}
	}
	return m
}

func (m *mockSessions) Lookup(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *mockSessions) End(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.ended = append(m.ended, id)
	return nil
}

func (m *mockSessions) endedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ended...)
}

type mockCollection struct {
	mu        sync.Mutex
	items     []model.Pokemon
	nextID    int
	listCalls int

	listFn   func(ctx context.Context, s *model.Session) ([]model.Pokemon, error)
	createFn func(ctx context.Context, s *model.Session, p model.NewPokemon) (model.Pokemon, error)
}

func (m *mockCollection) List(ctx context.Context, s *model.Session) ([]model.Pokemon, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.listFn != nil {
		return m.listFn(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Pokemon(nil), m.items...), nil
}

func (m *mockCollection) Create(ctx context.Context, s *model.Session, p model.NewPokemon) (model.Pokemon, error) {
	if m.createFn != nil {
		return m.createFn(ctx, s, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := model.Pokemon{
		ID: 100 + m.nextID, Name: p.Name, ImageURL: p.ImageURL, Types: p.Types,
		Height: p.Height, Weight: p.Weight, Abilities: p.Abilities,
	}
	m.items = append(m.items, created)
	return created, nil
}

func (m *mockCollection) CreateFromCatalog(ctx context.Context, s *model.Session, item model.CatalogItem) (model.Pokemon, error) {
	return m.Create(ctx, s, model.NewPokemonFromCatalog(item))
}

func (m *mockCollection) Release(_ context.Context, _ *model.Session, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.items {
		if p.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return model.NewRemoteError(http.StatusNotFound, "見つかりません", model.MsgReleaseFailed)
}

type mockCatalog struct {
	mu       sync.Mutex
	queries  []string
	items    []model.CatalogItem
	searchFn func(ctx context.Context, q string) ([]model.CatalogItem, error)
}

func (m *mockCatalog) SampleRandom(_ context.Context, n int) ([]model.CatalogItem, error) {
	return m.items[:min(n, len(m.items))], nil
}

func (m *mockCatalog) Search(ctx context.Context, q string) ([]model.CatalogItem, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	var out []model.CatalogItem
	for _, it := range m.items {
		if strings.Contains(it.Name, strings.ToLower(q)) {
			out = append(out, it)
		}
	}
	return out, nil
}

func catalogItem(id int, name string) model.CatalogItem {
	c := model.CatalogItem{ID: id, Name: name, Height: 4, Weight: 60}
	c.Sprites.FrontDefault = "https://img.example.com/" + name + ".png"
	return c
}

// --- テスト用ルーター ---

type testEnv struct {
	handler    http.Handler
	auth       *mockAuthFlow
	sessions   *mockSessions
	collection *mockCollection
	catalog    *mockCatalog
	views      *view.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:       &mockAuthFlow{},
		sessions:   newMockSessions(testSessionID),
		collection: &mockCollection{},
		catalog:    &mockCatalog{},
	}
	env.views = view.NewRegistry(view.Deps{
		Collection: env.collection,
		Catalog:    env.catalog,
		SampleSize: 3,
	}, time.Hour)
	t.Cleanup(func() { env.views.Close(testSessionID) })

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Inf,
		GeneralBurst:    1000,
		CatalogRate:     rate.Inf,
		CatalogBurst:    1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	h, err := NewRouter(&RouterDeps{
		SessionFinder: env.sessions,
		RateLimiter:   rl,
		AuthFlow:      env.auth,
		Sessions:      env.sessions,
		Views:         env.views,
	})
	if err != nil {
		t.Fatalf("NewRouter がエラーを返した: %v", err)
	}
	env.handler = h
	return env
}

func (e *testEnv) get(t *testing.T, path string, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(t *testing.T, path string, form url.Values, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
