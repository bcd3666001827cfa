package wazero

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/vmerr"
)

var (
	// runDuration 单次调用耗时（按引擎与结果分类）
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vmrunner",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Contract call duration by engine and result",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"engine", "result"},
	)

	// compileTotal wazero 编译次数
	compileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmrunner",
			Subsystem: "engine",
			Name:      "compile_total",
			Help:      "Modules compiled by wazero, by engine",
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(runDuration, compileTotal)
}

func observeRun(k kind.EngineKind, err *vmerr.VMError, d time.Duration) {
	result := "ok"
	if err != nil {
		result = err.Kind.String()
	}
	runDuration.WithLabelValues(k.String(), result).Observe(d.Seconds())
}
