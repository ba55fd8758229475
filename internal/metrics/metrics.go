// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// ストア呼び出し結果のラベル値
const (
	ResultOK         = "ok"
	ResultFetchError = "fetch_error"
	ResultValidation = "validation_error"
	ResultOther      = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordStoreQuery(op string, err error, duration time.Duration)
	RecordImport(imported, skipped int)
	RecordFetchResult(result string)
	RecordFetchLatency(duration time.Duration)
	RecordInquiry(kind string)
	RecordNewsletterSignup(status model.SignupStatus)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storeQueries  *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	storiesImport *prometheus.CounterVec
	fetchResults  *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	inquiries     *prometheus.CounterVec
	newsletter    *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_store_queries_total",
			Help: "ストーリーストアへの呼び出し数（操作・結果別）",
		}, []string{"operation", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snoozies_store_query_duration_seconds",
			Help:    "ストーリーストア呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		storiesImport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_import_stories_total",
			Help: "フィード取り込みで処理したストーリー数",
		}, []string{"outcome"}),
		fetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_import_fetch_total",
			Help: "インポート元フェッチの結果別件数",
		}, []string{"result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snoozies_import_fetch_latency_seconds",
			Help:    "インポート元フェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		inquiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_inquiries_total",
			Help: "受け付けたお問い合わせ・提案の件数",
		}, []string{"kind"}),
		newsletter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_newsletter_signups_total",
			Help: "ニュースレター登録の状態別件数",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snoozies_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.storeQueries,
		c.storeLatency,
		c.storiesImport,
		c.fetchResults,
		c.fetchLatency,
		c.inquiries,
		c.newsletter,
		c.httpStatus,
	)

	return c
}

// RecordStoreQuery はストア呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordStoreQuery(op string, err error, duration time.Duration) {
	c.storeQueries.WithLabelValues(op, StoreResult(err)).Inc()
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordImport は取り込み・スキップしたストーリー数を記録する。
func (c *Collector) RecordImport(imported, skipped int) {
	c.storiesImport.WithLabelValues("imported").Add(float64(imported))
	c.storiesImport.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordFetchResult はフェッチ結果を記録する。
func (c *Collector) RecordFetchResult(result string) {
	c.fetchResults.WithLabelValues(result).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordInquiry はお問い合わせ種別ごとの受付を記録する。
func (c *Collector) RecordInquiry(kind string) {
	c.inquiries.WithLabelValues(kind).Inc()
}

// RecordNewsletterSignup はニュースレター登録の状態を記録する。
func (c *Collector) RecordNewsletterSignup(status model.SignupStatus) {
	c.newsletter.WithLabelValues(string(status)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// StoreResult はストア呼び出しのエラーを結果ラベルに変換する。
func StoreResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case model.IsFetchError(err):
		return ResultFetchError
	case model.IsValidationError(err):
		return ResultValidation
	default:
		return ResultOther
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
