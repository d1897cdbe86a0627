// Package backend はポケモンコレクションサービス（ユーザー認証と所有ポケモン管理）の
// HTTPクライアントを提供する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/pokedex/internal/metrics"
	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/security"
)

const maxResponseSize = 1 << 20

// Client はコレクションサービスのクライアント。
// リトライは行わない。失敗は呼び出し元にそのまま返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	sanitizer  *security.TextSanitizer
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしの "http://localhost:3100" 形式。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, collector metrics.MetricsCollector) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		sanitizer:  security.NewTextSanitizer(),
		metrics:    metrics.OrNoop(collector),
	}
}

// errorBody はサービスのエラーレスポンス。
// messageは文字列または文字列配列（バリデーションエラー）のどちらでも受け付ける。
type errorBody struct {
	Message json.RawMessage `json:"message"`
}

func (b errorBody) text() string {
	if len(b.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Message, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(b.Message, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}

// call はリクエストを1回送信し、成功時はレスポンスボディをoutにデコードする。
// 非成功ステータスの場合はサーバーのmessage（なければfallback）を持つAPIErrorを返す。
// tokenが空でなければBearer認証ヘッダーを付与する。
func (c *Client) call(ctx context.Context, operation, method, path, token string, in, out any, fallback string) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(metrics.UpstreamBackend, operation, err == nil, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("コレクションサービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
		)
		return model.NewNetworkError(err, fallback)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.NewNetworkError(fmt.Errorf("failed to read response body: %w", err), fallback)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("コレクションサービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("operation", operation),
		)
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			return model.ErrSessionRejected
		}
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return model.NewRemoteError(resp.StatusCode, c.sanitizer.Text(eb.text()), fallback)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("コレクションサービスのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
		)
		return model.NewNetworkError(fmt.Errorf("failed to decode response: %w", err), fallback)
	}
	return nil
}
