package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Duration("monitor.interval", defaultCfg.Monitor.Interval, "-> Check interval (检查间隔)")
	f.Bool("monitor.process_metrics", defaultCfg.Monitor.ProcessMetrics, "-> Export agent process metrics (导出进程指标)")
}
