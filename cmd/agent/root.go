package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/registers"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
	"github.com/rethinkdb-collector/pkg/server"
	"github.com/rethinkdb-collector/pkg/signal"
	"github.com/rethinkdb-collector/pkg/util"
)

// Version 构建时通过 -ldflags "-X" 注入
var Version = "dev"

const shutdownTimeout = 10 * time.Second

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "rethinkdb-agent",
	Short:   "RethinkDB monitoring agent exporting cluster metrics to Prometheus",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runServer(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initMonitorFlags(rootCmd)
	initLogFlags(rootCmd)

	rootCmd.AddCommand(newCheckCmd())
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()
	rethinkdb.BridgeDriverLog(cfg.Log.Level)

	util.PrintBanner(os.Stdout, "rethinkdb-agent", "cyan", Version)

	rt, err := registers.InitPromRegistry(cfg.Monitor.ProcessMetrics, cfg, rethinkdb.DriverDialer{})
	if err != nil {
		return fmt.Errorf("init collectors failed: %w", err)
	}

	httpServer := server.NewHTTPServer(&cfg.Server, rt.Registry, rt.Sink, rt.Agent)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server failed: %w", err)
	}
	if err := rt.Agent.Start(ctx); err != nil {
		_ = httpServer.Shutdown(ctx)
		return fmt.Errorf("start collector agent failed: %w", err)
	}

	// 关闭顺序：HTTP服务 → 采集器
	return signal.WaitForShutdown(ctx, shutdownTimeout, func(ctx context.Context) error {
		var errs []error
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown HTTP server failed: %w", err))
		}
		if err := rt.Agent.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown collector agent failed: %w", err))
		}
		if len(errs) == 0 {
			logger.Info("all services shutdown successfully")
		}
		return errors.Join(errs...)
	})
}
