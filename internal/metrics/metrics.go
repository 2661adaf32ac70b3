// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// user/auth/submission/uploadの各Recorderとmiddleware.StatusObserverを満たす。
type Collector struct {
	signups         prometheus.Counter
	logins          *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	sessionsExpired prometheus.Counter
	submissions     prometheus.Counter
	uploads         prometheus.Counter
	uploadBytes     prometheus.Histogram
	sessionsReaped  prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_signups_total",
			Help: "ユーザー登録の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formportal_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_sessions_issued_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_sessions_expired_total",
			Help: "期限切れとして検出されたセッションの合計数",
		}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_submissions_saved_total",
			Help: "保存された申請の合計数",
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_uploads_total",
			Help: "アップロードされたファイルの合計数",
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formportal_upload_size_bytes",
			Help:    "アップロードされたファイルのサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formportal_sessions_reaped_total",
			Help: "定期削除で取り除かれた期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formportal_http_responses_total",
			Help: "HTTPメソッドとステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.sessionsIssued,
		c.sessionsExpired,
		c.submissions,
		c.uploads,
		c.uploadBytes,
		c.sessionsReaped,
		c.httpStatus,
	)

	return c
}

// RecordSignup はユーザー登録を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordSessionExpired は期限切れセッションの検出を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionsExpired.Inc()
}

// RecordSubmissionSaved は申請の保存を記録する。
func (c *Collector) RecordSubmissionSaved() {
	c.submissions.Inc()
}

// RecordUpload はアップロードとそのサイズを記録する。
func (c *Collector) RecordUpload(size int64) {
	c.uploads.Inc()
	c.uploadBytes.Observe(float64(size))
}

// RecordSessionsReaped は定期削除されたセッション数を記録する。
func (c *Collector) RecordSessionsReaped(count int64) {
	c.sessionsReaped.Add(float64(count))
}

// RecordHTTPStatus はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
