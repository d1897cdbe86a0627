package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は上流サービスから受け取った文字列を表示用のプレーンテキストに整える。
// 名前・タイプ・特性・サーバーメッセージにはHTMLが含まれないはずなので、
// タグはすべて除去する。エスケープはテンプレート側で行う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグをすべて除去するStrictPolicyでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyの出力はHTMLエスケープ済みなので、二重エスケープを避けるため戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// Texts はスライスの各要素にTextを適用する。空になった要素は取り除く。
func (s *TextSanitizer) Texts(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := s.Text(r); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ImageURL は画像URLがhttpまたはhttpsの絶対URLであればそのまま返し、
// それ以外（javascript:, data: など）は空文字列を返す。
func (s *TextSanitizer) ImageURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String()
	default:
		return ""
	}
}
