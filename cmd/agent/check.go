package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/logger"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
	"github.com/rethinkdb-collector/pkg/submit"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every configured instance once and print the submissions",
		Long: "Run every configured RethinkDB instance once and print the service check and metrics it submits.\n" +
			"--host replaces the instances from the config file with a single instance.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.LoadOption
			if host, _ := cmd.Flags().GetString("host"); host != "" {
				port, _ := cmd.Flags().GetInt("port")
				opts = append(opts, config.WithInstances(map[string]any{"host": host, "port": port}))
			}
			cfg, err := config.LoadConfigWithCli(cmd, opts...)
			if err != nil {
				return err
			}
			if _, err := logger.InitLogger(&cfg.Log); err != nil {
				return fmt.Errorf("日志初始化失败: %w", err)
			}
			defer logger.Sync()
			rethinkdb.BridgeDriverLog(cfg.Log.Level)

			return checkInstances(cmd.Context(), cmd.OutOrStdout(), cfg, rethinkdb.DriverDialer{})
		},
	}
	cmd.Flags().String("host", "", "-> RethinkDB host, overrides instances in config (实例地址)")
	cmd.Flags().Int("port", config.DefaultPort, "-> RethinkDB driver port (驱动端口)")
	return cmd
}

// checkInstances 每个实例执行一次检查并打印提交结果；任一实例失败返回合并错误
func checkInstances(ctx context.Context, w io.Writer, cfg *config.Config, dialer rethinkdb.Dialer) error {
	var errs []error
	for _, inst := range cfg.Instances {
		rec := submit.NewRecorder()
		err := rethinkdb.NewCheck(rethinkdb.NewConfig(inst), dialer, rec).Run(ctx)
		printSubmissions(w, inst.Name, rec, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", inst.Name, err))
		}
	}
	return errors.Join(errs...)
}

func printSubmissions(w io.Writer, instance string, rec *submit.Recorder, err error) {
	fmt.Fprintf(w, "== %s\n", instance)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, sc := range rec.ServiceChecks() {
		fmt.Fprintf(tw, "service_check\t%s\t%s\t%s\n", sc.Name, sc.Status, strings.Join(sc.Tags, ","))
	}
	for _, m := range rec.Metrics() {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", m.Kind, m.Name, m.Value, strings.Join(m.Tags, ","))
	}
	_ = tw.Flush()
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	fmt.Fprintf(w, "%d metrics submitted\n\n", len(rec.Metrics()))
}
