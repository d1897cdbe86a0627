package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/pokedex/internal/model"
)

func seedTable(env *testEnv, n int) {
	for i := 1; i <= n; i++ {
		env.collection.items = append(env.collection.items, model.Pokemon{
			ID: i, Name: fmt.Sprintf("mon-%02d", i), Types: []string{"normal"}, Height: float64(i), Weight: float64(i),
		})
	}
}

func TestTablePage_PaginatesRows(t *testing.T) {
	env := newTestEnv(t)
	seedTable(env, 12)

	body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if !strings.Contains(body, "mon-10") || strings.Contains(body, "mon-11") {
		t.Error("1ページ目には10件を表示するべき")
	}
	if !strings.Contains(body, "1 / 2") {
		t.Error("ページ番号を表示するべき")
	}

	assertRedirect(t, env.post(t, "/dashboard/pokemons/page", url.Values{"nav": {"next"}}, testSessionID), "/dashboard/pokemons")
	body = env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if !strings.Contains(body, "mon-12") || strings.Contains(body, "mon-01") {
		t.Error("2ページ目を表示するべき")
	}
	if !strings.Contains(body, `name="nav" value="next" disabled`) {
		t.Error("最後のページでは次へを無効にするべき")
	}
}

func TestTableSort_TogglesDirection(t *testing.T) {
	env := newTestEnv(t)
	seedTable(env, 3)
	env.get(t, "/dashboard/pokemons", testSessionID)

	env.post(t, "/dashboard/pokemons/sort", url.Values{"field": {"height"}}, testSessionID)
	env.post(t, "/dashboard/pokemons/sort", url.Values{"field": {"height"}}, testSessionID)

	body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if strings.Index(body, "mon-03") > strings.Index(body, "mon-01") {
		t.Error("同じ列を2回選ぶと降順になるべき")
	}

	if w := env.post(t, "/dashboard/pokemons/sort", url.Values{"field": {"color"}}, testSessionID); w.Code != http.StatusBadRequest {
		t.Errorf("不明なソート項目: status = %d, want 400", w.Code)
	}
}

func TestTableFilterAndPageSize(t *testing.T) {
	env := newTestEnv(t)
	seedTable(env, 3)
	env.collection.items = append(env.collection.items, model.Pokemon{ID: 50, Name: "charmander", Types: []string{"fire"}})
	env.get(t, "/dashboard/pokemons", testSessionID)

	env.post(t, "/dashboard/pokemons/filter", url.Values{"q": {"FIRE"}}, testSessionID)
	body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if !strings.Contains(body, "charmander") || strings.Contains(body, "mon-01") {
		t.Error("タイプで絞り込むべき")
	}

	if w := env.post(t, "/dashboard/pokemons/page-size", url.Values{"size": {"7"}}, testSessionID); w.Code != http.StatusBadRequest {
		t.Errorf("選択肢にないページサイズ: status = %d, want 400", w.Code)
	}
	assertRedirect(t, env.post(t, "/dashboard/pokemons/page-size", url.Values{"size": {"5"}}, testSessionID), "/dashboard/pokemons")
}

func TestTableCatchPicker_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.items = []model.CatalogItem{catalogItem(1, "bulbasaur"), catalogItem(4, "charmander"), catalogItem(7, "squirtle")}
	env.get(t, "/dashboard/pokemons", testSessionID)

	assertRedirect(t, env.post(t, "/dashboard/pokemons/catch/open", nil, testSessionID), "/dashboard/pokemons")
	body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	for _, name := range []string{"bulbasaur", "charmander", "squirtle"} {
		if !strings.Contains(body, name) {
			t.Errorf("候補 %s を表示するべき", name)
		}
	}

	env.post(t, "/dashboard/pokemons/catch/select", url.Values{"name": {"charmander"}}, testSessionID)
	body = env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if !strings.Contains(body, "charmander を捕まえる") {
		t.Fatal("選択した候補の確定ボタンを表示するべき")
	}

	assertRedirect(t, env.post(t, "/dashboard/pokemons/catch/confirm", nil, testSessionID), "/dashboard/pokemons")
	if len(env.collection.items) != 1 || env.collection.items[0].Name != "charmander" {
		t.Fatalf("items = %+v", env.collection.items)
	}
	body = env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if strings.Contains(body, `role="dialog"`) {
		t.Error("捕獲成功後はモーダルを閉じるべき")
	}
	if !strings.Contains(body, "<td>101</td>") {
		t.Error("サーバーが採番したIDを表示するべき")
	}
}

func TestTableManual_CopiesValuesAsIs(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/dashboard/pokemons", testSessionID)

	assertRedirect(t, env.post(t, "/dashboard/pokemons/manual", url.Values{
		"name":      {"missingno"},
		"image_url": {"https://img.example.com/m.png"},
		"types":     {"bird, normal"},
		"height":    {"3"},
		"weight":    {"1590.8"},
		"abilities": {""},
	}, testSessionID), "/dashboard/pokemons")

	if len(env.collection.items) != 1 {
		t.Fatalf("items = %+v", env.collection.items)
	}
	got := env.collection.items[0]
	if got.Height != 3 || got.Weight != 1590.8 || len(got.Types) != 2 || got.Types[1] != "normal" {
		t.Errorf("手入力の値はそのまま登録するべき: %+v", got)
	}
}

func TestTableManual_InvalidInputShowsNotice(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/dashboard/pokemons", testSessionID)

	env.post(t, "/dashboard/pokemons/manual", url.Values{"name": {"x"}, "height": {"-1"}, "weight": {"1"}}, testSessionID)

	if len(env.collection.items) != 0 {
		t.Error("不正な入力で登録してはならない")
	}
	if body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String(); !strings.Contains(body, "身長は0以上の数値で入力してください") {
		t.Error("入力エラーを表示するべき")
	}
}

func TestNavigation_DeactivatesOtherVariant(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/dashboard/pokemons", testSessionID)
	env.get(t, "/dashboard", testSessionID)

	v := env.views.Get(testSessionID)
	if v.Table.Active() {
		t.Error("カード画面に移動したら表画面を非アクティブにするべき")
	}
	if !v.Cards.Active() {
		t.Error("カード画面はアクティブであるべき")
	}

	env.get(t, "/dashboard/pokemons", testSessionID)
	if env.collection.listCalls != 3 {
		t.Errorf("listCalls = %d, 画面を切り替えるたびに読み込むべき", env.collection.listCalls)
	}
}

func TestTablePage_RetriesFailedLoadOnRevisit(t *testing.T) {
	env := newTestEnv(t)
	env.collection.items = []model.Pokemon{{ID: 9, Name: "blastoise", Types: []string{"water"}}}
	failed := false
	env.collection.listFn = func(context.Context, *model.Session) ([]model.Pokemon, error) {
		if !failed {
			failed = true
			return nil, model.NewRemoteError(http.StatusInternalServerError, "", model.MsgLoadFailed)
		}
		return append([]model.Pokemon(nil), env.collection.items...), nil
	}

	body := env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if !strings.Contains(body, model.MsgLoadFailed) {
		t.Fatal("読み込み失敗の通知を表示するべき")
	}

	// 読み込み前の捕獲はキャッシュを更新しない
	env.post(t, "/dashboard/pokemons/manual", url.Values{"name": {"ditto"}, "height": {"0.3"}, "weight": {"4"}}, testSessionID)
	if len(env.collection.items) != 1 {
		t.Errorf("読み込み前に登録してはならない: items = %+v", env.collection.items)
	}

	body = env.get(t, "/dashboard/pokemons", testSessionID).Body.String()
	if env.collection.listCalls != 2 {
		t.Errorf("listCalls = %d, 再表示で読み込み直すべき", env.collection.listCalls)
	}
	if !strings.Contains(body, "blastoise") || strings.Contains(body, model.MsgLoadFailed) {
		t.Error("再読み込み後は所有ポケモンを表示するべき")
	}
}
