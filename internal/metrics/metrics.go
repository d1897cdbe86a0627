// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流サービス名とアウトカムのラベル値。
const (
	UpstreamBackend = "backend"
	UpstreamCatalog = "catalog"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流クライアントやビュー層、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpstreamCall(upstream, operation string, ok bool, duration time.Duration)
	RecordCatch(ok bool)
	RecordRelease(ok bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	catches         *prometheus.CounterVec
	releases        *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_upstream_requests_total",
			Help: "上流サービスへのリクエスト数",
		}, []string{"upstream", "operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pokedex_upstream_latency_seconds",
			Help:    "上流サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
		catches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_catch_total",
			Help: "ポケモン捕獲操作の合計数",
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_release_total",
			Help: "ポケモン解放操作の合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamCalls,
		c.upstreamLatency,
		c.catches,
		c.releases,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamCall は上流サービス呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamCall(upstream, operation string, ok bool, duration time.Duration) {
	c.upstreamCalls.WithLabelValues(upstream, operation, outcome(ok)).Inc()
	c.upstreamLatency.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordCatch は捕獲操作の結果を記録する。
func (c *Collector) RecordCatch(ok bool) {
	c.catches.WithLabelValues(outcome(ok)).Inc()
}

// RecordRelease は解放操作の結果を記録する。
func (c *Collector) RecordRelease(ok bool) {
	c.releases.WithLabelValues(outcome(ok)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Noop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Noop struct{}

func (Noop) RecordUpstreamCall(string, string, bool, time.Duration) {}
func (Noop) RecordCatch(bool)                                      {}
func (Noop) RecordRelease(bool)                                    {}
func (Noop) RecordHTTPStatus(int)                                  {}

// OrNoop はcがnilの場合にNoopを返す。
func OrNoop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return Noop{}
	}
	return c
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
