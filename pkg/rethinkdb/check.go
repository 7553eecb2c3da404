// Package rethinkdb 实现 RethinkDB 检查：建立连接、执行指标流并提交指标，
// 每次检查恰好提交一次 rethinkdb.can_connect 服务检查。
package rethinkdb

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/submit"
)

// ServiceCheckName 连通性服务检查名称
const ServiceCheckName = "rethinkdb.can_connect"

// Check 单实例检查执行器，每次 Run 使用独立的连接
type Check struct {
	cfg    *Config
	dialer Dialer
	sender submit.Sender
}

// NewCheck 创建检查执行器；dialer 为 nil 时使用 DriverDialer
func NewCheck(cfg *Config, dialer Dialer, sender submit.Sender) *Check {
	if dialer == nil {
		dialer = DriverDialer{}
	}
	return &Check{cfg: cfg, dialer: dialer, sender: sender}
}

// Config 返回检查配置
func (c *Check) Config() *Config { return c.cfg }

// Run 执行一次检查：建连后按顺序执行所有指标流并提交指标。
// 任一指标流失败立即返回，已提交的指标保留。
func (c *Check) Run(ctx context.Context) error {
	logger.Debug("check config",
		zap.String("instance", c.cfg.Instance),
		zap.String("address", c.cfg.Address()),
		zap.Int("streams", len(c.cfg.MetricStreams)))

	return c.connect(ctx, func(conn Connection) error {
		for i, stream := range c.cfg.MetricStreams {
			for m, err := range stream(ctx, conn) {
				if err != nil {
					return fmt.Errorf("metric stream %d: %w", i, err)
				}
				if err := c.submitMetric(m); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// connect 建连并在连接作用域内执行 fn。
// 任何退出路径都经过同一个 defer 提交服务检查，panic 在提交后重新抛出。
func (c *Check) connect(ctx context.Context, fn func(conn Connection) error) (err error) {
	tags := slices.Clone(c.cfg.Tags)
	status := submit.StatusCritical

	defer func() {
		if p := recover(); p != nil {
			logger.Error("unexpected error while executing RethinkDB check",
				zap.String("instance", c.cfg.Instance), zap.Any("panic", p))
			c.sender.ServiceCheck(ServiceCheckName, submit.StatusCritical, tags)
			panic(p)
		}
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) {
				logger.Error("could not connect to RethinkDB server",
					zap.String("instance", c.cfg.Instance), zap.Error(err))
			} else {
				logger.Error("unexpected error while executing RethinkDB check",
					zap.String("instance", c.cfg.Instance), zap.Error(err))
			}
		} else {
			logger.Debug("service_check OK", zap.String("instance", c.cfg.Instance))
		}
		c.sender.ServiceCheck(ServiceCheckName, status, tags)
	}()

	address := c.cfg.Address()
	conn, err := c.dialer.Dial(ctx, c.cfg.DialOptions())
	if err != nil {
		return &ConnectionError{Address: address, Op: "connect", Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close RethinkDB connection", zap.String("instance", c.cfg.Instance), zap.Error(cerr))
		}
	}()

	server, err := conn.Server()
	if err != nil {
		return &ConnectionError{Address: address, Op: "read server identity", Err: err}
	}
	tags = append(tags, "server:"+server.Name)
	logger.Debug("connected server",
		zap.String("instance", c.cfg.Instance),
		zap.String("server", server.Name),
		zap.String("server_id", server.ID))

	if err := fn(&identifiedConn{Connection: conn, server: server}); err != nil {
		return err
	}
	status = submit.StatusOK
	return nil
}

// submitMetric 按指标类型分发提交；实例标签追加在指标标签之前
func (c *Check) submitMetric(m submit.Metric) error {
	if len(c.cfg.Tags) > 0 {
		m.Tags = append(slices.Clone(c.cfg.Tags), m.Tags...)
	}
	logger.Debug("submit_metric",
		zap.String("name", m.Name),
		zap.Stringer("kind", m.Kind),
		zap.Float64("value", m.Value),
		zap.Strings("tags", m.Tags))
	return submit.Submit(c.sender, m)
}
