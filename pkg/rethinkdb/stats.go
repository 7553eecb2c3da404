package rethinkdb

import "github.com/rethinkdb-collector/pkg/submit"

// statsRow rethinkdb.stats 表的一行，id[0] 区分 cluster/server/table/table_server
type statsRow struct {
	ID            []string      `rethinkdb:"id"`
	Server        string        `rethinkdb:"server"`
	DB            string        `rethinkdb:"db"`
	Table         string        `rethinkdb:"table"`
	QueryEngine   queryEngine   `rethinkdb:"query_engine"`
	StorageEngine storageEngine `rethinkdb:"storage_engine"`
}

type queryEngine struct {
	QueriesPerSec     float64 `rethinkdb:"queries_per_sec"`
	QueriesTotal      float64 `rethinkdb:"queries_total"`
	ReadDocsPerSec    float64 `rethinkdb:"read_docs_per_sec"`
	ReadDocsTotal     float64 `rethinkdb:"read_docs_total"`
	WrittenDocsPerSec float64 `rethinkdb:"written_docs_per_sec"`
	WrittenDocsTotal  float64 `rethinkdb:"written_docs_total"`
	ClientConnections float64 `rethinkdb:"client_connections"`
	ClientsActive     float64 `rethinkdb:"clients_active"`
}

type storageEngine struct {
	Cache struct {
		InUseBytes float64 `rethinkdb:"in_use_bytes"`
	} `rethinkdb:"cache"`
	Disk struct {
		ReadBytesPerSec    float64 `rethinkdb:"read_bytes_per_sec"`
		ReadBytesTotal     float64 `rethinkdb:"read_bytes_total"`
		WrittenBytesPerSec float64 `rethinkdb:"written_bytes_per_sec"`
		WrittenBytesTotal  float64 `rethinkdb:"written_bytes_total"`
		SpaceUsage         struct {
			MetadataBytes     float64 `rethinkdb:"metadata_bytes"`
			DataBytes         float64 `rethinkdb:"data_bytes"`
			GarbageBytes      float64 `rethinkdb:"garbage_bytes"`
			PreallocatedBytes float64 `rethinkdb:"preallocated_bytes"`
		} `rethinkdb:"space_usage"`
	} `rethinkdb:"disk"`
}

func (s *statsRow) kind() string {
	if len(s.ID) == 0 {
		return ""
	}
	return s.ID[0]
}

// ClusterStatistics 集群级查询统计
var ClusterStatistics = rowStream("stats", clusterStatistics)

// ServerStatistics 每个服务器的查询统计，按行中的服务器打标签
var ServerStatistics = rowStream("stats", serverStatistics)

// TableStatistics 每张表的读写统计
var TableStatistics = rowStream("stats", tableStatistics)

// ReplicaStatistics 每个副本（表 × 服务器）的查询、缓存与磁盘统计
var ReplicaStatistics = rowStream("stats", replicaStatistics)

func clusterStatistics(row *statsRow, server string) []submit.Metric {
	if row.kind() != "cluster" {
		return nil
	}
	tags := []string{"server:" + server}
	q := row.QueryEngine
	return []submit.Metric{
		gauge("rethinkdb.stats.cluster.queries_per_sec", q.QueriesPerSec, tags),
		gauge("rethinkdb.stats.cluster.read_docs_per_sec", q.ReadDocsPerSec, tags),
		gauge("rethinkdb.stats.cluster.written_docs_per_sec", q.WrittenDocsPerSec, tags),
	}
}

func serverStatistics(row *statsRow, _ string) []submit.Metric {
	if row.kind() != "server" {
		return nil
	}
	tags := []string{"server:" + row.Server}
	q := row.QueryEngine
	return []submit.Metric{
		gauge("rethinkdb.stats.server.client_connections", q.ClientConnections, tags),
		gauge("rethinkdb.stats.server.clients_active", q.ClientsActive, tags),
		gauge("rethinkdb.stats.server.queries_per_sec", q.QueriesPerSec, tags),
		monotonic("rethinkdb.stats.server.queries_total", q.QueriesTotal, tags),
		gauge("rethinkdb.stats.server.read_docs_per_sec", q.ReadDocsPerSec, tags),
		monotonic("rethinkdb.stats.server.read_docs_total", q.ReadDocsTotal, tags),
		gauge("rethinkdb.stats.server.written_docs_per_sec", q.WrittenDocsPerSec, tags),
		monotonic("rethinkdb.stats.server.written_docs_total", q.WrittenDocsTotal, tags),
	}
}

func tableStatistics(row *statsRow, server string) []submit.Metric {
	if row.kind() != "table" {
		return nil
	}
	tags := []string{"server:" + server, "table:" + row.Table, "database:" + row.DB}
	q := row.QueryEngine
	return []submit.Metric{
		gauge("rethinkdb.stats.table.read_docs_per_sec", q.ReadDocsPerSec, tags),
		gauge("rethinkdb.stats.table.written_docs_per_sec", q.WrittenDocsPerSec, tags),
	}
}

func replicaStatistics(row *statsRow, _ string) []submit.Metric {
	if row.kind() != "table_server" {
		return nil
	}
	tags := []string{"server:" + row.Server, "table:" + row.Table, "database:" + row.DB}
	q := row.QueryEngine
	disk := row.StorageEngine.Disk
	return []submit.Metric{
		gauge("rethinkdb.stats.table_server.read_docs_per_sec", q.ReadDocsPerSec, tags),
		monotonic("rethinkdb.stats.table_server.read_docs_total", q.ReadDocsTotal, tags),
		gauge("rethinkdb.stats.table_server.written_docs_per_sec", q.WrittenDocsPerSec, tags),
		monotonic("rethinkdb.stats.table_server.written_docs_total", q.WrittenDocsTotal, tags),
		gauge("rethinkdb.stats.table_server.cache.in_use_bytes", row.StorageEngine.Cache.InUseBytes, tags),
		gauge("rethinkdb.stats.table_server.disk.read_bytes_per_sec", disk.ReadBytesPerSec, tags),
		monotonic("rethinkdb.stats.table_server.disk.read_bytes_total", disk.ReadBytesTotal, tags),
		gauge("rethinkdb.stats.table_server.disk.written_bytes_per_sec", disk.WrittenBytesPerSec, tags),
		monotonic("rethinkdb.stats.table_server.disk.written_bytes_total", disk.WrittenBytesTotal, tags),
		gauge("rethinkdb.stats.table_server.disk.metadata_bytes", disk.SpaceUsage.MetadataBytes, tags),
		gauge("rethinkdb.stats.table_server.disk.data_bytes", disk.SpaceUsage.DataBytes, tags),
		gauge("rethinkdb.stats.table_server.disk.garbage_bytes", disk.SpaceUsage.GarbageBytes, tags),
		gauge("rethinkdb.stats.table_server.disk.preallocated_bytes", disk.SpaceUsage.PreallocatedBytes, tags),
	}
}
