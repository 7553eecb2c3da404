package rethinkdb

import (
	"context"
	"iter"
	"strconv"
	"time"

	"github.com/rethinkdb-collector/pkg/submit"
)

// serverStatusRow rethinkdb.server_status 表
type serverStatusRow struct {
	Name    string `rethinkdb:"name"`
	Network struct {
		TimeConnected time.Time       `rethinkdb:"time_connected"`
		ConnectedTo   map[string]bool `rethinkdb:"connected_to"`
	} `rethinkdb:"network"`
	Process struct {
		TimeStarted time.Time `rethinkdb:"time_started"`
	} `rethinkdb:"process"`
}

// tableStatusRow rethinkdb.table_status 表；表不可用时 shards 为 null
type tableStatusRow struct {
	DB     string `rethinkdb:"db"`
	Name   string `rethinkdb:"name"`
	Status struct {
		ReadyForOutdatedReads bool `rethinkdb:"ready_for_outdated_reads"`
		ReadyForReads         bool `rethinkdb:"ready_for_reads"`
		ReadyForWrites        bool `rethinkdb:"ready_for_writes"`
		AllReplicasReady      bool `rethinkdb:"all_replicas_ready"`
	} `rethinkdb:"status"`
	Shards []struct {
		PrimaryReplicas []string `rethinkdb:"primary_replicas"`
		Replicas        []struct {
			Server string `rethinkdb:"server"`
			State  string `rethinkdb:"state"`
		} `rethinkdb:"replicas"`
	} `rethinkdb:"shards"`
}

// ServerStatus 每个服务器的网络与进程状态
func ServerStatus(ctx context.Context, conn Connection) iter.Seq2[submit.Metric, error] {
	now := time.Now()
	return rowStream("server_status", func(row *serverStatusRow, _ string) []submit.Metric {
		return serverStatusMetrics(row, now)
	})(ctx, conn)
}

// serverStatusMetrics time_connected / time_started 以距 now 的秒数上报
func serverStatusMetrics(row *serverStatusRow, now time.Time) []submit.Metric {
	tags := []string{"server:" + row.Name}
	pending := 0
	for _, connected := range row.Network.ConnectedTo {
		if !connected {
			pending++
		}
	}
	return []submit.Metric{
		gauge("rethinkdb.server_status.network.time_connected", secondsSince(now, row.Network.TimeConnected), tags),
		gauge("rethinkdb.server_status.network.connected_to.total", float64(len(row.Network.ConnectedTo)), tags),
		gauge("rethinkdb.server_status.network.connected_to.pending.total", float64(pending), tags),
		gauge("rethinkdb.server_status.process.time_started", secondsSince(now, row.Process.TimeStarted), tags),
	}
}

func secondsSince(now, t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Seconds()
}

// TableStatus 每张表的可用性、分片与副本状态
var TableStatus = rowStream("table_status", tableStatusMetrics)

func tableStatusMetrics(row *tableStatusRow, server string) []submit.Metric {
	tags := []string{"server:" + server, "table:" + row.Name, "database:" + row.DB}
	st := row.Status
	out := []submit.Metric{
		gauge("rethinkdb.table_status.ready_for_outdated_reads", boolValue(st.ReadyForOutdatedReads), tags),
		gauge("rethinkdb.table_status.ready_for_reads", boolValue(st.ReadyForReads), tags),
		gauge("rethinkdb.table_status.ready_for_writes", boolValue(st.ReadyForWrites), tags),
		gauge("rethinkdb.table_status.all_replicas_ready", boolValue(st.AllReplicasReady), tags),
		gauge("rethinkdb.table_status.shards.total", float64(len(row.Shards)), tags),
	}
	for i, shard := range row.Shards {
		shardTags := withTags(tags, "shard:"+strconv.Itoa(i))
		out = append(out,
			gauge("rethinkdb.table_status.shards.replicas.total", float64(len(shard.Replicas)), shardTags),
			gauge("rethinkdb.table_status.shards.replicas.primary.total", float64(len(shard.PrimaryReplicas)), shardTags),
		)
		for _, replica := range shard.Replicas {
			out = append(out, gauge("rethinkdb.table_status.shards.replicas.state", 1,
				withTags(shardTags, "replica:"+replica.Server, "state:"+replica.State)))
		}
	}
	return out
}

// withTags 复制 base 并追加标签
func withTags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
