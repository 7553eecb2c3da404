package agent

import (
	"github.com/spf13/cobra"

	"github.com/rethinkdb-collector/pkg/config"
)

var defaultCfg = config.NewDefaultConfig()

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("server.addr", defaultCfg.Server.Addr, "-> HTTP listening address (HTTP监听地址)")
	f.Duration("server.read_timeout", defaultCfg.Server.ReadTimeout, "-> Read timeout duration (读取超时时间)")
	f.Duration("server.write_timeout", defaultCfg.Server.WriteTimeout, "-> Write timeout duration (写入超时时间)")
	f.Duration("server.idle_timeout", defaultCfg.Server.IdleTimeout, "-> Idle connection timeout duration (空闲连接超时时间)")
	f.Float64("server.check_rate", defaultCfg.Server.CheckRate, "-> Allowed POST /check per second (手动检查速率)")
	f.Int("server.check_burst", defaultCfg.Server.CheckBurst, "-> Burst of POST /check (手动检查突发上限)")
}
