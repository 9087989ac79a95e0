// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordMarkToggle(marked bool)
	RecordImportSuccess(imported, updated int)
	RecordImportFailure(code string)
	RecordFetchLatency(duration time.Duration)
	RecordCacheLookup(hit bool)
	RecordExport(format string)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(kind string, deleted int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	markToggle      *prometheus.CounterVec
	importRuns      *prometheus.CounterVec
	recordsImported prometheus.Counter
	recordsUpdated  prometheus.Counter
	fetchLatency    prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	exports         *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	cleanupDeleted  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		markToggle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_mark_toggle_total",
			Help: "マーク状態の更新数",
		}, []string{"state"}),
		importRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_import_runs_total",
			Help: "インポート実行数（結果別）",
		}, []string{"result"}),
		recordsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordman_records_imported_total",
			Help: "インポートで新規作成されたレコードの合計数",
		}),
		recordsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recordman_records_updated_total",
			Help: "インポートで更新されたレコードの合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recordman_fetch_latency_seconds",
			Help:    "リモートデータソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_import_cache_lookups_total",
			Help: "インポートキャッシュの参照数",
		}, []string{"result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_exports_total",
			Help: "形式別のエクスポート数",
		}, []string{"format"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recordman_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.markToggle,
		c.importRuns,
		c.recordsImported,
		c.recordsUpdated,
		c.fetchLatency,
		c.cacheLookups,
		c.exports,
		c.httpStatus,
		c.cleanupDeleted,
	)

	return c
}

// RecordMarkToggle はマーク状態の更新を記録する。
func (c *Collector) RecordMarkToggle(marked bool) {
	state := "unmarked"
	if marked {
		state = "marked"
	}
	c.markToggle.WithLabelValues(state).Inc()
}

// RecordImportSuccess は成功したインポートとその件数を記録する。
func (c *Collector) RecordImportSuccess(imported, updated int) {
	c.importRuns.WithLabelValues("success").Inc()
	c.recordsImported.Add(float64(imported))
	c.recordsUpdated.Add(float64(updated))
}

// RecordImportFailure は失敗したインポートをエラーコード別に記録する。
func (c *Collector) RecordImportFailure(code string) {
	c.importRuns.WithLabelValues(code).Inc()
}

// RecordFetchLatency はリモート取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCacheLookup はキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordExport はエクスポートを記録する。
func (c *Collector) RecordExport(format string) {
	c.exports.WithLabelValues(format).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップで削除された行数を記録する。
func (c *Collector) RecordCleanup(kind string, deleted int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(deleted))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
