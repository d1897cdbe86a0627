package view

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hitoshi/pokedex/internal/model"
)

// --- モック定義 ---

type mockCollection struct {
	mu     sync.Mutex
	items  []model.Pokemon
	nextID int

	listFn              func(ctx context.Context) ([]model.Pokemon, error)
	createFn            func(ctx context.Context, p model.NewPokemon) (model.Pokemon, error)
	createFromCatalogFn func(ctx context.Context, item model.CatalogItem) (model.Pokemon, error)
	releaseFn           func(ctx context.Context, id int) error
}

func newMockCollection(items ...model.Pokemon) *mockCollection {
	m := &mockCollection{items: items, nextID: 100}
	return m
}

func (m *mockCollection) List(ctx context.Context, _ *model.Session) ([]model.Pokemon, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Pokemon, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockCollection) Create(ctx context.Context, _ *model.Session, p model.NewPokemon) (model.Pokemon, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return m.add(p), nil
}

func (m *mockCollection) CreateFromCatalog(ctx context.Context, s *model.Session, item model.CatalogItem) (model.Pokemon, error) {
	if m.createFromCatalogFn != nil {
		return m.createFromCatalogFn(ctx, item)
	}
	return m.add(model.NewPokemonFromCatalog(item)), nil
}

func (m *mockCollection) Release(ctx context.Context, _ *model.Session, id int) error {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, id)
	}
	return nil
}

func (m *mockCollection) add(p model.NewPokemon) model.Pokemon {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := model.Pokemon{
		ID: m.nextID, Name: p.Name, ImageURL: p.ImageURL, Types: p.Types,
		Height: p.Height, Weight: p.Weight, Abilities: p.Abilities,
	}
	m.items = append(m.items, created)
	return created
}

type mockCatalog struct {
	sampleFn func(ctx context.Context, n int) ([]model.CatalogItem, error)
	searchFn func(ctx context.Context, q string) ([]model.CatalogItem, error)

	mu       sync.Mutex
	searches []string
}

func (m *mockCatalog) SampleRandom(ctx context.Context, n int) ([]model.CatalogItem, error) {
	if m.sampleFn != nil {
		return m.sampleFn(ctx, n)
	}
	out := make([]model.CatalogItem, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, catalogItem(i, []string{"a", "b", "c", "d", "e", "f"}[(i-1)%6]))
	}
	return out, nil
}

func (m *mockCatalog) Search(ctx context.Context, q string) ([]model.CatalogItem, error) {
	m.mu.Lock()
	m.searches = append(m.searches, q)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return []model.CatalogItem{catalogItem(25, q)}, nil
}

func (m *mockCatalog) searchedQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

func catalogItem(id int, name string) model.CatalogItem {
	raw := fmt.Sprintf(`{"id":%d,"name":%q,"types":[{"type":{"name":"fire"}}],"height":7,"weight":690}`, id, name)
	var c model.CatalogItem
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		panic(err)
	}
	return c
}

func pokemon(id int, name string, height, weight float64, types ...string) model.Pokemon {
	return model.Pokemon{ID: id, Name: name, Height: height, Weight: weight, Types: types}
}

var testSession = &model.Session{ID: "sid", Token: "tok"}

func newDeps(col *mockCollection, cat *mockCatalog) Deps {
	return Deps{Collection: col, Catalog: cat, SampleSize: 5}
}
