package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 许可单创建数
	permitsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "permits_created_total",
			Help: "Total number of permits created",
		},
	)

	// 生命周期转换数
	permitTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permit_transitions_total",
			Help: "Total number of permit lifecycle transitions",
		},
		[]string{"action"}, // approved, rejected, extend, revoke, reapprove, close
	)

	// 自动关闭数
	permitsAutoClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permits_auto_closed_total",
			Help: "Total number of permits closed by the auto-close sweep",
		},
		[]string{"kind"}, // regular, extended
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

var once sync.Once

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(permitsCreatedTotal)
	prometheus.MustRegister(permitTransitionsTotal)
	prometheus.MustRegister(permitsAutoClosedTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)

	// Go 运行时指标只注册一次,已注册则忽略
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordPermitCreated 记录许可单创建
func RecordPermitCreated() {
	permitsCreatedTotal.Inc()
}

// RecordPermitTransition 记录生命周期转换
func RecordPermitTransition(action string) {
	permitTransitionsTotal.WithLabelValues(action).Inc()
}

// RecordAutoClosed 记录自动关闭数量
func RecordAutoClosed(kind string, count int) {
	if count > 0 {
		permitsAutoClosedTotal.WithLabelValues(kind).Add(float64(count))
	}
}

// UpdateDatabaseConnections 更新数据库连接池指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}
