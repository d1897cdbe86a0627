package model

import (
	"strconv"
	"strings"
)

// Pokemon はユーザーが捕まえたポケモン（所有アイテム）を表す。
// IDはコレクションサービスが採番し、ユーザーのコレクション内で一意。
// 身長はメートル、体重はキログラム単位。
type Pokemon struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	ImageURL  string   `json:"imageUrl"`
	Types     []string `json:"types"`
	Height    float64  `json:"height"`
	Weight    float64  `json:"weight"`
	Abilities []string `json:"abilities"`
}

// NewPokemon はコレクションサービスへの作成リクエストのペイロード（IDなし）。
type NewPokemon struct {
	Name      string   `json:"name"`
	ImageURL  string   `json:"imageUrl"`
	Types     []string `json:"types"`
	Height    float64  `json:"height"`
	Weight    float64  `json:"weight"`
	Abilities []string `json:"abilities"`
}

// IndexEntry はカタログの名前・URL一覧の1件。
type IndexEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CatalogItem は公開カタログAPIのポケモン詳細レコード。
// 身長はデシメートル、体重はヘクトグラム単位で、Pokemonとは単位が異なる。
type CatalogItem struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"-"` // 一覧から引き継いだ詳細URL
	Sprites struct {
		FrontDefault string `json:"front_default"`
	} `json:"sprites"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Height    int `json:"height"`
	Weight    int `json:"weight"`
	Abilities []struct {
		Ability struct {
			Name string `json:"name"`
		} `json:"ability"`
	} `json:"abilities"`
}

// ImageURL は正面スプライト画像のURLを返す。
func (c CatalogItem) ImageURL() string {
	return c.Sprites.FrontDefault
}

// TypeNames はタイプ名を順序どおりに返す。
func (c CatalogItem) TypeNames() []string {
	names := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		names = append(names, t.Type.Name)
	}
	return names
}

// AbilityNames は特性名を順序どおりに返す。
func (c CatalogItem) AbilityNames() []string {
	names := make([]string, 0, len(c.Abilities))
	for _, a := range c.Abilities {
		names = append(names, a.Ability.Name)
	}
	return names
}

// CatalogID はカタログ上のIDを返す。
// 詳細レコードにIDがない場合は詳細URLの末尾セグメントから推定する。
func (c CatalogItem) CatalogID() int {
	if c.ID != 0 {
		return c.ID
	}
	return IDFromURL(c.URL)
}

// NewPokemonFromCatalog はカタログレコードを作成ペイロードに変換する。
// 身長・体重はデシメートル/ヘクトグラムからメートル/キログラムへ10で割って換算する。
func NewPokemonFromCatalog(c CatalogItem) NewPokemon {
	return NewPokemon{
		Name:      c.Name,
		ImageURL:  c.ImageURL(),
		Types:     c.TypeNames(),
		Height:    float64(c.Height) / 10,
		Weight:    float64(c.Weight) / 10,
		Abilities: c.AbilityNames(),
	}
}

// Preview はカタログレコードを表示用のPokemonに射影する。
// 捕まえる前の詳細表示やカード表示に使用する。IDはカタログ上のID。
func (c CatalogItem) Preview() Pokemon {
	p := NewPokemonFromCatalog(c)
	return Pokemon{
		ID:        c.CatalogID(),
		Name:      p.Name,
		ImageURL:  p.ImageURL,
		Types:     p.Types,
		Height:    p.Height,
		Weight:    p.Weight,
		Abilities: p.Abilities,
	}
}

// IDFromURL は ".../pokemon/25/" 形式のURLから末尾の数値IDを取り出す。
// 取り出せない場合は0を返す。
func IDFromURL(rawURL string) int {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0
	}
	id, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return 0
	}
	return id
}
