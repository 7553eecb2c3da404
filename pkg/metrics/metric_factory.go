package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewGaugeVec 创建并注册 GaugeVec
func (m *MetricFactory) NewGaugeVec(name, help string, labels []string) (*prometheus.GaugeVec, error) {
	return registerOrExisting(m.reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels))
}

// NewCounterVec 创建并注册 CounterVec
func (m *MetricFactory) NewCounterVec(name, help string, labels []string) (*prometheus.CounterVec, error) {
	return registerOrExisting(m.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels))
}

// NewHistogramVec 创建并注册 HistogramVec（默认分桶）
func (m *MetricFactory) NewHistogramVec(name, help string, labels []string) (*prometheus.HistogramVec, error) {
	return registerOrExisting(m.reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	}, labels))
}
