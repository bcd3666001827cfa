package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
//                          Prometheus 监控指标
// ============================================================================

var (
	// lookupTotal 缓存查询次数（按引擎和结果分类）
	lookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmrunner",
			Subsystem: "cache",
			Name:      "lookup_total",
			Help:      "Compiled contract cache lookups by engine and result",
		},
		[]string{"engine", "result"}, // hit, miss, stale, compile_error
	)

	// putTotal 缓存写入次数（按记录类型分类）
	putTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmrunner",
			Subsystem: "cache",
			Name:      "put_total",
			Help:      "Compiled contract cache writes by engine and record kind",
		},
		[]string{"engine", "record"}, // artifact, compile_error
	)

	// storeErrorTotal 存储故障次数
	storeErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmrunner",
			Subsystem: "cache",
			Name:      "store_error_total",
			Help:      "Backing store failures by engine and operation",
		},
		[]string{"engine", "op"}, // read, write
	)
)

func init() {
	prometheus.MustRegister(lookupTotal, putTotal, storeErrorTotal)
}
