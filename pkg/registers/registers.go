package registers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/collector"
	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/metrics"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
)

// Module 一个待注册的采集器
type Module struct {
	Name    string
	NewFunc func() Collector
}

// Runtime InitPromRegistry 的返回值
// Registry	Prometheus 指标注册器，用于 /metrics 暴露指标或单元测试
// Sink	    指标提交后端，保存最近一次服务检查结果供 /health 使用
// Agent	采集器管理器，后台周期性执行各实例的检查
type Runtime struct {
	Registry *prometheus.Registry
	Sink     *metrics.Sink
	Agent    *AgentImpl
}

// InitPromRegistry 创建指标注册器、提交后端，并为每个实例注册采集器（不启动）
func InitPromRegistry(enableProcess bool, cfg *config.Config, dialer rethinkdb.Dialer) (*Runtime, error) {
	promReg := prometheus.NewRegistry()
	// 仅注册进程指标（可选），不注册Go指标
	if enableProcess {
		promReg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	reg := metrics.NewPromRegistry(promReg)
	sink, err := metrics.NewSink(reg)
	if err != nil {
		return nil, err
	}
	metricFactory := metrics.NewMetricFactory(reg)

	agent := NewAgent(cfg.Monitor.Interval)
	if _, err := RegisterCollectors(agent, cfg, metricFactory, sink, dialer); err != nil {
		logger.Error("failed to register collectors", zap.Error(err))
		return nil, err
	}
	return &Runtime{Registry: promReg, Sink: sink, Agent: agent}, nil
}

// RegisterCollectors 采集器注册统一入口：每个实例一个采集器，拥有独立的 Config
func RegisterCollectors(agent Agent, cfg *config.Config, metricFactory *metrics.MetricFactory, sink *metrics.Sink, dialer rethinkdb.Dialer) ([]Collector, error) {
	// 不同实例配置的标签键不同时，统一补齐标签维度
	var instanceTags []string
	for _, inst := range cfg.Instances {
		instanceTags = append(instanceTags, inst.Tags...)
	}
	sink.ReserveTagKeys(instanceTags)

	modules := make([]Module, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		modules = append(modules, Module{
			Name: inst.Name,
			NewFunc: func() Collector {
				return collector.NewRethinkDBCollector(rethinkdb.NewConfig(inst), dialer, sink.ForInstance(inst.Name), metricFactory)
			},
		})
	}

	var registered []Collector
	for _, m := range modules {
		c := m.NewFunc()
		agent.Register(c)
		registered = append(registered, c)
		logger.Debug("registered collector", zap.String("instance", m.Name), zap.String("name", c.Name()))
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("no collectors registered; check instances config")
	}

	names := make([]string, 0, len(registered))
	for _, c := range registered {
		names = append(names, c.Name())
	}
	logger.Debug("all collectors registered", zap.Strings("collectors", names))
	return registered, nil
}
