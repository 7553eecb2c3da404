package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/metrics"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
	"github.com/rethinkdb-collector/pkg/submit"
)

// cycleSender 按采集周期替换实例序列的提交端（metrics.InstanceSender）
type cycleSender interface {
	BeginCycle()
	EndCycle()
}

// RethinkDBCollector 单个 RethinkDB 实例的采集器（实现 registers.Collector 接口）
type RethinkDBCollector struct {
	name            string
	check           *rethinkdb.Check
	sender          submit.Sender
	collectErrors   *prometheus.CounterVec
	collectDuration *prometheus.HistogramVec

	mu sync.Mutex // 同一实例的检查串行执行（定时采集与手动触发）
}

// NewRethinkDBCollector 创建 RethinkDB 采集器
func NewRethinkDBCollector(cfg *rethinkdb.Config, dialer rethinkdb.Dialer, sender submit.Sender, metricFactory *metrics.MetricFactory) *RethinkDBCollector {
	return &RethinkDBCollector{
		name:            "rethinkdb:" + cfg.Instance,
		check:           rethinkdb.NewCheck(cfg, dialer, sender),
		sender:          sender,
		collectErrors:   metricFactory.NewAgentCollectErrorsTotal(),
		collectDuration: metricFactory.NewAgentCollectDurationSeconds(),
	}
}

// Name 返回采集器名称
func (c *RethinkDBCollector) Name() string { return c.name }

// Init 预检查实例配置
func (c *RethinkDBCollector) Init() error {
	cfg := c.check.Config()
	if cfg.Host == "" {
		return fmt.Errorf("%s: host is empty", c.name)
	}
	if len(cfg.MetricStreams) == 0 {
		logger.Warn("no metric streams configured, only service check will be reported", zap.String("name", c.name))
	}
	return nil
}

// Collect 执行一次检查
func (c *RethinkDBCollector) Collect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer func() {
		c.collectDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	// 本次检查未再提交的序列在结束时删除，失败同样生效
	if cs, ok := c.sender.(cycleSender); ok {
		cs.BeginCycle()
		defer cs.EndCycle()
	}

	logger.Debug("collect RethinkDB metrics", zap.String("name", c.name))
	if err := c.check.Run(ctx); err != nil {
		c.collectErrors.WithLabelValues(c.name).Inc()
		return fmt.Errorf("run check: %w", err)
	}
	return nil
}

// Close 连接在每次检查结束时已释放，这里无资源需要关闭
func (c *RethinkDBCollector) Close() error { return nil }
