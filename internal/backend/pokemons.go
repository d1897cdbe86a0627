package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/pokedex/internal/model"
)

// token はセッションからBearerトークンを取り出す。
// セッションがない、またはトークンが空の場合はリクエスト前にErrAuthRequiredを返す。
func token(s *model.Session) (string, error) {
	if s == nil || s.Token == "" {
		return "", model.ErrAuthRequired
	}
	return s.Token, nil
}

// List は GET /pokemons でユーザーの所有ポケモンを取得する。
// 非成功ステータスは汎用の読み込み失敗メッセージにする。
func (c *Client) List(ctx context.Context, s *model.Session) ([]model.Pokemon, error) {
	tok, err := token(s)
	if err != nil {
		return nil, err
	}

	var items []model.Pokemon
	if err := c.call(ctx, "list", http.MethodGet, "/pokemons", tok, nil, &items, model.MsgLoadFailed); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeRemoteFailed {
			return nil, model.NewRemoteError(apiErr.Status, "", model.MsgLoadFailed)
		}
		return nil, err
	}
	for i := range items {
		items[i] = c.clean(items[i])
	}
	return items, nil
}

// Create は値をそのままコピーして POST /pokemons で作成し、
// サービスが採番したIDを含む作成済みアイテムを返す。
func (c *Client) Create(ctx context.Context, s *model.Session, p model.NewPokemon) (model.Pokemon, error) {
	tok, err := token(s)
	if err != nil {
		return model.Pokemon{}, err
	}

	var created model.Pokemon
	if err := c.call(ctx, "create", http.MethodPost, "/pokemons", tok, p, &created, model.MsgCatchFailed); err != nil {
		return model.Pokemon{}, err
	}
	return c.clean(created), nil
}

// CreateFromCatalog はカタログレコードを単位換算（身長・体重を10で割る）して作成する。
func (c *Client) CreateFromCatalog(ctx context.Context, s *model.Session, item model.CatalogItem) (model.Pokemon, error) {
	return c.Create(ctx, s, model.NewPokemonFromCatalog(item))
}

// Release は DELETE /pokemons/{id} で所有ポケモンを手放す。
func (c *Client) Release(ctx context.Context, s *model.Session, id int) error {
	tok, err := token(s)
	if err != nil {
		return err
	}
	return c.call(ctx, "release", http.MethodDelete, fmt.Sprintf("/pokemons/%d", id), tok, nil, nil, model.MsgReleaseFailed)
}

func (c *Client) clean(p model.Pokemon) model.Pokemon {
	p.Name = c.sanitizer.Text(p.Name)
	p.ImageURL = c.sanitizer.ImageURL(p.ImageURL)
	p.Types = c.sanitizer.Texts(p.Types)
	p.Abilities = c.sanitizer.Texts(p.Abilities)
	return p
}
