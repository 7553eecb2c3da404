package signal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rethinkdb-collector/pkg/logger"
)

// ErrShutdownTimeout 关闭流程超过超时时间
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束，然后在 timeout 内执行 shutdownFunc
func WaitForShutdown(ctx context.Context, timeout time.Duration, shutdownFunc func(ctx context.Context) error) error {
	if shutdownFunc == nil {
		return errors.New("shutdownFunc is nil, cannot execute shutdown")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("service running, waiting for SIGINT/SIGTERM...")
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context done, shutting down", zap.Error(ctx.Err()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- shutdownFunc(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("graceful shutdown completed successfully")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("graceful shutdown timed out", zap.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}
