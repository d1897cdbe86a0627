// Package catalog は公開ポケモンカタログAPIのクライアントを提供する。
// 名前・URL一覧の取得、詳細の取得、ランダム抽出と名前検索を含む。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/security"
)

const (
	// indexPath はカタログ全件の名前・URL一覧を1回で取得するパス。
	indexPath = "/pokemon?limit=100000&offset=0"

	// DefaultSampleSize はランダム抽出のデフォルト件数。
	DefaultSampleSize = 5
	// DefaultSearchLimit は名前検索で詳細を取得する最大件数。
	DefaultSearchLimit = 20

	defaultMaxConcurrent = 20
	defaultRateLimit     = 20 // req/s
	maxResponseSize      = 5 << 20
)

// Client はカタログAPIのクライアント。認証は不要。
type Client struct {
	httpClient    *http.Client
	logger        *slog.Logger
	baseURL       string
	limiter       *rate.Limiter
	maxConcurrent int
	searchLimit   int
	validateURL   func(string) error
	sanitizer     *security.TextSanitizer
	metrics       metrics.MetricsCollector

	// shuffle はテスト用に差し替え可能
	shuffle func(entries []model.IndexEntry)
}

// Option はClientの任意設定。
type Option func(*Client)

// WithRateLimit は外向きリクエストのレート（req/s）を設定する。
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
	}
}

// WithMaxConcurrent は詳細取得の同時実行数の上限を設定する。
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithSearchLimit は名前検索の最大件数を設定する。
func WithSearchLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithURLValidator は詳細URLの追加検証関数を設定する（URLGuard.ValidateURLなど）。
func WithURLValidator(fn func(string) error) Option {
	return func(c *Client) {
		c.validateURL = fn
	}
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = metrics.OrNoop(m)
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしの "https://pokeapi.co/api/v2" 形式。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:    httpClient,
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		limiter:       rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
		maxConcurrent: defaultMaxConcurrent,
		searchLimit:   DefaultSearchLimit,
		sanitizer:     security.NewTextSanitizer(),
		metrics:       metrics.Noop{},
		shuffle: func(entries []model.IndexEntry) {
			rand.Shuffle(len(entries), func(i, j int) {
				entries[i], entries[j] = entries[j], entries[i]
			})
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListIndex はカタログ全件の名前・URL一覧を取得する。
func (c *Client) ListIndex(ctx context.Context) ([]model.IndexEntry, error) {
	var page struct {
		Results []model.IndexEntry `json:"results"`
	}
	if err := c.getJSON(ctx, "index", c.baseURL+indexPath, &page); err != nil {
		return nil, fmt.Errorf("failed to list catalog index: %w", err)
	}
	return page.Results, nil
}

// FetchDetail は詳細URLからカタログレコードを取得する。
// URLは設定済みのカタログホスト上のものでなければならない。
func (c *Client) FetchDetail(ctx context.Context, detailURL string) (model.CatalogItem, error) {
	if err := security.SameOrigin(c.baseURL, detailURL); err != nil {
		return model.CatalogItem{}, fmt.Errorf("refused catalog detail URL: %w", err)
	}
	if c.validateURL != nil {
		if err := c.validateURL(detailURL); err != nil {
			return model.CatalogItem{}, fmt.Errorf("refused catalog detail URL: %w", err)
		}
	}

	var item model.CatalogItem
	if err := c.getJSON(ctx, "detail", detailURL, &item); err != nil {
		return model.CatalogItem{}, fmt.Errorf("failed to fetch catalog detail: %w", err)
	}
	item.URL = detailURL
	return c.sanitize(item), nil
}

// SampleRandom は一覧から重複なくn件をランダムに選び、詳細を並行取得する。
// nが0以下の場合はDefaultSampleSizeを使う。一覧がn件未満なら全件を返す。
// 1件でも取得に失敗した場合は全体を失敗とする。
func (c *Client) SampleRandom(ctx context.Context, n int) ([]model.CatalogItem, error) {
	if n <= 0 {
		n = DefaultSampleSize
	}

	index, err := c.ListIndex(ctx)
	if err != nil {
		return nil, model.NewNetworkError(err, model.MsgSampleFailed)
	}

	picked := make([]model.IndexEntry, len(index))
	copy(picked, index)
	c.shuffle(picked)
	if len(picked) > n {
		picked = picked[:n]
	}

	items, err := c.resolve(ctx, picked)
	if err != nil {
		return nil, model.NewNetworkError(err, model.MsgSampleFailed)
	}
	return items, nil
}

// Search は名前に query を含む（大文字小文字を区別しない）エントリを
// 一覧の順に最大searchLimit件選び、詳細を並行取得する。
// 空白のみのクエリは通信せずに空の結果を返す。
func (c *Client) Search(ctx context.Context, query string) ([]model.CatalogItem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []model.CatalogItem{}, nil
	}

	index, err := c.ListIndex(ctx)
	if err != nil {
		return nil, model.NewNetworkError(err, model.MsgSearchFailed)
	}

	matched := make([]model.IndexEntry, 0, c.searchLimit)
	for _, e := range index {
		if strings.Contains(strings.ToLower(e.Name), q) {
			matched = append(matched, e)
			if len(matched) == c.searchLimit {
				break
			}
		}
	}

	items, err := c.resolve(ctx, matched)
	if err != nil {
		return nil, model.NewNetworkError(err, model.MsgSearchFailed)
	}
	return items, nil
}

// resolve はエントリの詳細を同時実行数を制限して並行取得する。
// 結果はエントリと同じ順序で返す。
func (c *Client) resolve(ctx context.Context, entries []model.IndexEntry) ([]model.CatalogItem, error) {
	items := make([]model.CatalogItem, len(entries))
	if len(entries) == 0 {
		return items, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, e := range entries {
		g.Go(func() error {
			item, err := c.FetchDetail(gctx, e.URL)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// getJSON はレート制限を守ってGETし、JSONレスポンスをoutにデコードする。
func (c *Client) getJSON(ctx context.Context, operation, reqURL string, out any) (err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(metrics.UpstreamCatalog, operation, err == nil, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("カタログAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
			slog.String("url", reqURL),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("カタログAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("operation", operation),
			slog.String("url", reqURL),
		)
		return model.NewRemoteError(resp.StatusCode, "", model.MsgRequestFailed)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("カタログAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
		)
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// sanitize は上流由来の文字列からタグを除去し、画像URLを検証する。
func (c *Client) sanitize(item model.CatalogItem) model.CatalogItem {
	item.Name = c.sanitizer.Text(item.Name)
	item.Sprites.FrontDefault = c.sanitizer.ImageURL(item.Sprites.FrontDefault)
	for i := range item.Types {
		item.Types[i].Type.Name = c.sanitizer.Text(item.Types[i].Type.Name)
	}
	for i := range item.Abilities {
		item.Abilities[i].Ability.Name = c.sanitizer.Text(item.Abilities[i].Ability.Name)
	}
	return item
}
