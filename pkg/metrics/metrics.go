package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，由 API 进程注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobTotal, JobDuration, PhaseDuration,
		ModelCallDuration, ModelTokensTotal,
		EnrichDuration, CacheRequestTotal,
		BusDroppedTotal, SSESubscribers,
		RateLimitWaitSeconds,
	)
}

// JobTotal Job 总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blocks_job_total",
		Help: "Job 总数（按终态）",
	},
	[]string{"status"}, // succeeded | failed | cancelled
)

// JobDuration Job 端到端耗时（秒）
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "blocks_job_duration_seconds",
		Help:    "Job 端到端耗时（秒）",
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
	},
)

// PhaseDuration 各阶段耗时（秒）
var PhaseDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blocks_phase_duration_seconds",
		Help:    "TRIAD 各阶段耗时（秒）",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
	},
	[]string{"phase"}, // p1 | p2 | p3
)

// ModelCallDuration 模型调用耗时（秒，按角色）
var ModelCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blocks_model_call_duration_seconds",
		Help:    "模型调用耗时（秒，按角色）",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 45},
	},
	[]string{"role"}, // strategist | planner | validator
)

// ModelTokensTotal 模型 token 用量
var ModelTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blocks_model_tokens_total",
		Help: "模型 token 用量",
	},
	[]string{"role", "direction"}, // direction: input | output
)

// EnrichDuration 富化调用耗时（秒，按类型）
var EnrichDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blocks_enrich_duration_seconds",
		Help:    "富化调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind"}, // geocode | places | routes | holiday | weather
)

// CacheRequestTotal 缓存请求数（命中/未命中）
var CacheRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blocks_cache_request_total",
		Help: "缓存请求数",
	},
	[]string{"cache", "result"}, // cache: coord | places | routes; result: hit | miss
)

// BusDroppedTotal 事件总线因订阅者阻塞而丢弃的事件数
var BusDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "blocks_bus_dropped_total",
		Help: "事件总线丢弃事件数（慢订阅者）",
	},
)

// SSESubscribers 当前 SSE 订阅连接数
var SSESubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "blocks_sse_subscribers",
		Help: "当前 SSE 订阅连接数",
	},
)

// RateLimitWaitSeconds 限流等待时间（超过 100ms 才记录）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blocks_rate_limit_wait_seconds",
		Help:    "限流等待时间（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"}, // kind: llm | enrich
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
