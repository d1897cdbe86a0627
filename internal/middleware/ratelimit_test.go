package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/pokedex/internal/model"
	"github.com/hitoshi/pokedex/internal/session"
)

func testLimiter(t *testing.T, generalBurst, catalogBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		CatalogRate:     rate.Limit(0.001),
		CatalogBurst:    catalogBurst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func requestWithSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/dashboard/search", nil)
	if id != "" {
		req = req.WithContext(session.NewContext(req.Context(), &model.Session{ID: id, Token: "tok"}))
	}
	return req
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 30)
	if cfg.GeneralRate != rate.Limit(2) || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.CatalogRate != rate.Limit(0.5) || cfg.CatalogBurst != 30 {
		t.Errorf("catalog = %v/%d", cfg.CatalogRate, cfg.CatalogBurst)
	}
}

func TestRateLimiter_GeneralPerSession(t *testing.T) {
	rl := testLimiter(t, 2, 1)
	h := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestWithSession("a"))
		if w.Code != http.StatusOK {
			t.Fatalf("%d回目: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestWithSession("a"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if sec, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || sec < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	// 別セッションは独立して制限される
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestWithSession("b"))
	if w.Code != http.StatusOK {
		t.Errorf("別セッション: status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_CatalogIndependentOfGeneral(t *testing.T) {
	rl := testLimiter(t, 10, 1)
	h := rl.GeneralMiddleware()(rl.CatalogMiddleware()(okHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestWithSession("a"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestWithSession("a"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("カタログ操作の制限: status = %d, want 429", w.Code)
	}
	if rl.CatalogLimiterCount() != 1 {
		t.Errorf("CatalogLimiterCount = %d, want 1", rl.CatalogLimiterCount())
	}
}

func TestRateLimiter_FallsBackToRemoteAddr(t *testing.T) {
	rl := testLimiter(t, 1, 1)
	h := rl.GeneralMiddleware()(okHandler)

	req := requestWithSession("")
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	req2 := requestWithSession("")
	req2.RemoteAddr = "192.0.2.1:5678"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req2)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("同じアドレスはポートが違っても同じクライアントとして扱うべき: status = %d", w.Code)
	}
}

func TestRateLimiter_CleanupRemovesIdle(t *testing.T) {
	rl := testLimiter(t, 5, 5)
	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestWithSession("a"))
	rl.CatalogMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestWithSession("a"))

	rl.cleanup(time.Now().Add(3 * time.Hour))

	if rl.GeneralLimiterCount() != 0 || rl.CatalogLimiterCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.CatalogLimiterCount())
	}
}
