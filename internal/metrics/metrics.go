// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フロー、ガード、クライアントレジストリ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignIn(method, result string)
	RecordSignUp(result string)
	RecordSignOut(result string)
	RecordGuardDecision(decision string)
	SetActiveClients(n int)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(deleted int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIn          *prometheus.CounterVec
	signUp          *prometheus.CounterVec
	signOut         *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	activeClients   prometheus.Gauge
	httpStatus      *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porttfolio_sign_in_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "result"}),
		signUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porttfolio_sign_up_total",
			Help: "アカウント作成試行の合計数（結果別）",
		}, []string{"result"}),
		signOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porttfolio_sign_out_total",
			Help: "ログアウト試行の合計数（結果別）",
		}, []string{"result"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porttfolio_guard_decisions_total",
			Help: "ルートガードの判定数",
		}, []string{"decision"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "porttfolio_active_clients",
			Help: "メモリ上に保持しているクライアント数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "porttfolio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "porttfolio_provider_sessions_cleaned_total",
			Help: "削除された期限切れIdPセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signIn,
		c.signUp,
		c.signOut,
		c.guardDecisions,
		c.activeClients,
		c.httpStatus,
		c.sessionsCleaned,
	)

	return c
}

// RecordSignIn はログイン結果を記録する。methodはpasswordまたはgoogle。
func (c *Collector) RecordSignIn(method, result string) {
	c.signIn.WithLabelValues(method, result).Inc()
}

// RecordSignUp はアカウント作成結果を記録する。
func (c *Collector) RecordSignUp(result string) {
	c.signUp.WithLabelValues(result).Inc()
}

// RecordSignOut はログアウト結果を記録する。
func (c *Collector) RecordSignOut(result string) {
	c.signOut.WithLabelValues(result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// SetActiveClients は保持中のクライアント数を設定する。
func (c *Collector) SetActiveClients(n int) {
	c.activeClients.Set(float64(n))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup は削除した期限切れセッション数を記録する。
func (c *Collector) RecordCleanup(deleted int64) {
	c.sessionsCleaned.Add(float64(deleted))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカーのように独立したHTTPサーバーで公開する場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
