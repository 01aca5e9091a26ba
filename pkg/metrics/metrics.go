package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker/CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		DispatchTotal, DispatchInFlight, TransportAttempts,
		DedupMarks, IdempotencyTokens, IdempotencyCacheEntries,
		IdempotencyLookups, IdempotencyStoreErrors,
		CounterTxTotal, CounterTxConflicts,
		DeviceCallDuration,
	)
}

// DispatchTotal 客户端命令派发结果
var DispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_dispatch_total",
		Help: "命令派发次数（按结果）",
	},
	[]string{"operation", "outcome"}, // success | failed | suppressed
)

// DispatchInFlight 正在执行的派发数
var DispatchInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "home_panel_dispatch_in_flight",
		Help: "正在执行的命令派发数",
	},
)

// DedupMarks 去重表中的在途标记数
var DedupMarks = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "home_panel_dedup_marks",
		Help: "去重表在途标记数",
	},
)

// IdempotencyTokens 客户端窗口内持有的幂等 token 数
var IdempotencyTokens = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "home_panel_idempotency_tokens",
		Help: "客户端幂等 token 数",
	},
)

// IdempotencyCacheEntries 服务端内存幂等缓存条目数（清理后更新）
var IdempotencyCacheEntries = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "home_panel_idempotency_cache_entries",
		Help: "服务端幂等缓存条目数",
	},
)

// TransportAttempts 传输层尝试次数（按结果）
var TransportAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_transport_attempts_total",
		Help: "HTTP 尝试次数",
	},
	[]string{"result"}, // ok | retryable | fatal
)

// IdempotencyLookups 幂等缓存查询
var IdempotencyLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_idempotency_lookups_total",
		Help: "幂等缓存查询次数",
	},
	[]string{"result"}, // hit | miss | conflict | stored | skipped
)

// IdempotencyStoreErrors 幂等缓存读写失败（降级为告警）
var IdempotencyStoreErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_idempotency_store_errors_total",
		Help: "幂等缓存读写失败次数",
	},
	[]string{"op"}, // get | put
)

// CounterTxTotal 计数器事务结果
var CounterTxTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_counter_tx_total",
		Help: "计数器事务结果",
	},
	[]string{"op", "result"}, // result: applied | rejected | error
)

// CounterTxConflicts 乐观并发冲突导致的重试次数
var CounterTxConflicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "home_panel_counter_tx_conflicts_total",
		Help: "计数器事务冲突重试次数",
	},
	[]string{"store"},
)

// DeviceCallDuration 设备 API 调用耗时（秒）
var DeviceCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "home_panel_device_call_duration_seconds",
		Help:    "设备 API 调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"device", "action"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
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
