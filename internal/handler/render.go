package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/pokedex/internal/middleware"
	"github.com/hitoshi/pokedex/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	pageAuth  = "auth"
	pageCards = "cards"
	pageTable = "table"
)

// ナビゲーションの識別子
const (
	navCards = "cards"
	navTable = "table"
)

var templateFuncs = template.FuncMap{
	"join":       strings.Join,
	"measure":    formatMeasure,
	"selected":   func(a, b string) bool { return a == b },
	"sortHeader": newSortHeader,
}

// formatMeasure は身長・体重を余分な0なしで表示する。
func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sortHeader は表の列見出しのソートボタンに渡すデータ。
type sortHeader struct {
	Page  pageData
	Base  string
	Field string
	Label string
	Mark  string
}

func newSortHeader(p pageData, field, label string) sortHeader {
	h := sortHeader{Page: p, Base: p.Base, Field: field, Label: label}
	if st, ok := p.State.(view.TableState); ok {
		h.Mark = st.SortMark(field)
	}
	return h
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer はテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageAuth, pageCards, pageTable} {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/modal.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// pageData はレイアウトに渡す共通データ。
type pageData struct {
	Title     string
	CSRFToken string
	CSRFField string
	Nav       string
	Base      string
	LoggedIn  bool
	State     any
}

// render はページを描画する。描画に失敗した場合は500を返す。
func (rd *Renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := rd.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		middleware.WriteInternalServerError(w)
		return
	}
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	data.CSRFField = middleware.CSRFFormField

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// staticHandler はCSSとJavaScriptを配信する。
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
