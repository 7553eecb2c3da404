package registers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/logger"
)

// AgentImpl 实现 registers.Agent 接口
type AgentImpl struct {
	collectors []Collector
	interval   time.Duration
	ticker     *time.Ticker
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	mu         sync.Mutex
}

// NewAgent 创建采集器管理器（初始化上下文）
func NewAgent(interval time.Duration) *AgentImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &AgentImpl{
		collectors: make([]Collector, 0),
		interval:   interval,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register 注册采集器
func (a *AgentImpl) Register(c Collector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collectors = append(a.collectors, c)
}

// Collectors 返回已注册采集器的副本
func (a *AgentImpl) Collectors() []Collector {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := make([]Collector, len(a.collectors))
	copy(copied, a.collectors)
	return copied
}

// InitAll 初始化所有采集器，任一失败即返回
func (a *AgentImpl) InitAll() error {
	for _, coll := range a.Collectors() {
		if err := coll.Init(); err != nil {
			return fmt.Errorf("collector %s init failed: %w", coll.Name(), err)
		}
		logger.Debug("collector initialized successfully", zap.String("name", coll.Name()))
	}
	return nil
}

// Start 初始化采集器并启动定时采集；首轮采集立即执行
func (a *AgentImpl) Start(ctx context.Context) error {
	if err := a.InitAll(); err != nil {
		return err
	}

	a.ticker = time.NewTicker(a.interval)
	a.done = make(chan struct{})
	logger.Info("collector agent started", zap.String("name", "collector-registry"),
		zap.Duration("interval", a.interval),
		zap.Int("registered-collectors-count", len(a.Collectors())))

	// 采集上下文同时受外部 ctx 与 Shutdown 控制，进行中的检查也会被取消
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.ctx, cancel)

	go func() {
		defer close(a.done)
		defer stop()
		defer cancel()
		// 首次采集（失败仅警告）
		if err := a.CollectAll(runCtx); err != nil {
			logger.Warn("first collection failed", zap.String("name", "collector-registry"), zap.Error(err))
		}

		for {
			select {
			case <-a.ticker.C:
				_ = a.CollectAll(runCtx) // 单实例失败不影响其它实例
			case <-runCtx.Done():
				a.ticker.Stop()
				if a.ctx.Err() != nil {
					logger.Info("collector agent stopped by internal shutdown", zap.String("name", "collector-registry"))
				} else {
					logger.Info("collector agent stopped by external context", zap.String("name", "collector-registry"), zap.Error(ctx.Err()))
				}
				return
			}
		}
	}()
	return nil
}

// Shutdown 停止采集循环并关闭所有采集器
func (a *AgentImpl) Shutdown(ctx context.Context) error {
	logger.Info("starting to shutdown collector agent", zap.String("name", "collector-registry"))

	if a.ticker != nil {
		a.ticker.Stop()
	}
	a.cancel()

	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			logger.Warn("collector agent shutdown timed out", zap.Error(ctx.Err()))
		}
	}
	return a.CloseAll()
}

// CollectAll 并发执行所有采集器，每个实例使用独立的连接；返回所有失败的合并错误
func (a *AgentImpl) CollectAll(ctx context.Context) error {
	collectors := a.Collectors()
	errs := make([]error, len(collectors))

	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Collect(ctx); err != nil {
				logger.Warn("collection failed", zap.String("name", c.Name()), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", c.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// CloseAll 批量关闭采集器，返回最后一个错误
func (a *AgentImpl) CloseAll() error {
	var lastErr error
	for _, c := range a.Collectors() {
		logger.Debug("closing collector", zap.String("name", c.Name()))
		if err := c.Close(); err != nil {
			logger.Error("failed to close collector", zap.String("name", c.Name()), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
