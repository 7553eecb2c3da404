package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAgentCollectErrorsTotal 创建「检查失败总数」指标
// 指标类型：Counter（计数器）- 仅支持单调递增，服务重启后会重置为0
// 标签说明：
// collector: 采集器名称（如 "rethinkdb:db1:28015"），用于区分不同实例
func (m *MetricFactory) NewAgentCollectErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_collect_errors_total",
		Help: "Total collection errors",
	}, []string{"collector"})
	c, err := registerOrExisting(m.reg, c)
	if err != nil {
		panic(err)
	}
	return c
}

// NewAgentCollectDurationSeconds 创建「单次检查耗时分布」指标
// 指标类型：Histogram（直方图）
// 分桶说明：使用Prometheus默认分桶 [0.005 ... 10] 秒
func (m *MetricFactory) NewAgentCollectDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_collect_duration_seconds",
		Help:    "Collection duration per collector",
		Buckets: prometheus.DefBuckets,
	}, []string{"collector"})
	h, err := registerOrExisting(m.reg, h)
	if err != nil {
		panic(err)
	}
	return h
}

// NewAgentSubmitDroppedTotal 创建「被丢弃的提交」指标（标签维度不一致、计数器负增量等）
func (m *MetricFactory) NewAgentSubmitDroppedTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_submit_dropped_total",
		Help: "Submissions dropped by the prometheus sink",
	}, []string{"reason"})
	c, err := registerOrExisting(m.reg, c)
	if err != nil {
		panic(err)
	}
	return c
}
