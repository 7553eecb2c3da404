package rethinkdb

import "github.com/rethinkdb-collector/pkg/submit"

// jobRow rethinkdb.jobs 表，info 字段随 type 不同而不同
type jobRow struct {
	Type        string  `rethinkdb:"type"`
	DurationSec float64 `rethinkdb:"duration_sec"`
	Info        struct {
		ClientAddress string  `rethinkdb:"client_address"`
		DB            string  `rethinkdb:"db"`
		Table         string  `rethinkdb:"table"`
		Index         string  `rethinkdb:"index"`
		FromServer    string  `rethinkdb:"from_server"`
		ToServer      string  `rethinkdb:"to_server"`
		Progress      float64 `rethinkdb:"progress"`
	} `rethinkdb:"info"`
}

// SystemJobs 正在运行的查询、索引构建、回填与磁盘压缩任务；未知类型忽略
var SystemJobs = rowStream("jobs", jobMetrics)

func jobMetrics(row *jobRow, server string) []submit.Metric {
	tags := []string{"server:" + server}
	info := row.Info

	switch row.Type {
	case "query":
		tags = append(tags, "client_address:"+info.ClientAddress)
		return []submit.Metric{
			gauge("rethinkdb.jobs.query.duration", row.DurationSec, tags),
		}
	case "index_construction":
		tags = append(tags, "database:"+info.DB, "table:"+info.Table, "index:"+info.Index)
		return []submit.Metric{
			gauge("rethinkdb.jobs.index_construction.duration", row.DurationSec, tags),
			gauge("rethinkdb.jobs.index_construction.progress", info.Progress, tags),
		}
	case "backfill":
		tags = append(tags, "database:"+info.DB, "table:"+info.Table,
			"from_server:"+info.FromServer, "to_server:"+info.ToServer)
		return []submit.Metric{
			gauge("rethinkdb.jobs.backfill.duration", row.DurationSec, tags),
			gauge("rethinkdb.jobs.backfill.progress", info.Progress, tags),
		}
	case "disk_compaction":
		return []submit.Metric{
			gauge("rethinkdb.jobs.disk_compaction.duration", row.DurationSec, tags),
		}
	default:
		return nil
	}
}
