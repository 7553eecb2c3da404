package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb-collector/pkg/submit"
)

func newTestSink(t *testing.T) (*Sink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := NewSink(NewPromRegistry(reg))
	require.NoError(t, err)
	return s, reg
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "rethinkdb_stats_cluster_queries_per_sec", SanitizeName("rethinkdb.stats.cluster.queries_per_sec"))
	assert.Equal(t, "_9lives", SanitizeName("9lives"))
	assert.Equal(t, "a_b_c", SanitizeName("a-b c"))
	assert.Equal(t, "_", SanitizeName(""))
}

func TestTagLabels(t *testing.T) {
	keys, values := tagLabels([]string{"server:s1", "env:prod", "server:s2", "standalone", "instance:x"})
	assert.Equal(t, []string{"env", "server", "standalone", "tag_instance"}, keys)
	assert.Equal(t, []string{"prod", "s1", "", "x"}, values)
}

func TestSinkGauge(t *testing.T) {
	s, _ := newTestSink(t)
	s.Gauge("rethinkdb.server_status.network.connected_to.total", 2, []string{"server:s1"})
	s.Gauge("rethinkdb.server_status.network.connected_to.total", 3, []string{"server:s1"})

	fam := s.families["rethinkdb_server_status_network_connected_to_total"]
	require.NotNil(t, fam)
	assert.Equal(t, 3.0, testutil.ToFloat64(fam.gauge.WithLabelValues("s1")))
}

func TestSinkCountRejectsNegative(t *testing.T) {
	s, _ := newTestSink(t)
	s.Count("rethinkdb.current_issues.total", 2, nil)
	s.Count("rethinkdb.current_issues.total", -1, nil)
	s.Count("rethinkdb.current_issues.total", 1, nil)

	fam := s.families["rethinkdb_current_issues_total"]
	assert.Equal(t, 3.0, testutil.ToFloat64(fam.count.WithLabelValues()))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.dropped.WithLabelValues("negative")))
}

func TestSinkMonotonicCount(t *testing.T) {
	s, _ := newTestSink(t)
	name := "rethinkdb.stats.server.queries_total"
	s.MonotonicCount(name, 100, []string{"server:s1"})
	s.MonotonicCount(name, 130, []string{"server:s1"})
	// 计数器重置，仅记录新基线
	s.MonotonicCount(name, 10, []string{"server:s1"})
	s.MonotonicCount(name, 15, []string{"server:s1"})

	fam := s.families["rethinkdb_stats_server_queries_total"]
	assert.Equal(t, 35.0, testutil.ToFloat64(fam.count.WithLabelValues("s1")))
}

func TestSinkRate(t *testing.T) {
	s, _ := newTestSink(t)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	s.Rate("rethinkdb.jobs.total", 10, nil)
	now = now.Add(10 * time.Second)
	s.Rate("rethinkdb.jobs.total", 30, nil)

	fam := s.families["rethinkdb_jobs_total"]
	assert.Equal(t, 2.0, testutil.ToFloat64(fam.gauge.WithLabelValues()))
}

func TestSinkHistogram(t *testing.T) {
	s, reg := newTestSink(t)
	s.Histogram("rethinkdb.jobs.query.duration", 0.5, []string{"server:s1"})
	s.Histogram("rethinkdb.jobs.query.duration", 1.5, []string{"server:s1"})

	fam := findFamily(t, reg, "rethinkdb_jobs_query_duration")
	require.Len(t, fam.GetMetric(), 1)
	h := fam.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.Equal(t, 2.0, h.GetSampleSum())
}

func TestSinkLabelMismatchDropped(t *testing.T) {
	s, _ := newTestSink(t)
	s.Gauge("rethinkdb.x", 1, []string{"server:s1"})
	s.Gauge("rethinkdb.x", 2, []string{"db:d1"})
	s.Count("rethinkdb.x", 2, []string{"server:s1"})

	assert.Equal(t, 2.0, testutil.ToFloat64(s.dropped.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.families["rethinkdb_x"].gauge.WithLabelValues("s1")))
}

func TestSinkForInstance(t *testing.T) {
	s, _ := newTestSink(t)
	db1 := s.ForInstance("db1")
	db2 := s.ForInstance("db2")

	db1.Gauge("rethinkdb.y", 1, []string{"server:a"})
	db2.Gauge("rethinkdb.y", 2, []string{"server:a"})
	db1.ServiceCheck("rethinkdb.can_connect", submit.StatusOK, []string{"server:a"})
	db2.ServiceCheck("rethinkdb.can_connect", submit.StatusCritical, nil)

	fam := s.families["rethinkdb_y"]
	assert.Equal(t, []string{"server", InstanceLabel}, fam.labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(fam.gauge.WithLabelValues("a", "db1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(fam.gauge.WithLabelValues("a", "db2")))

	assert.Equal(t, 0.0, testutil.ToFloat64(s.status.WithLabelValues("rethinkdb.can_connect", "db1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.status.WithLabelValues("rethinkdb.can_connect", "db2")))

	checks := s.ServiceChecks()
	require.Len(t, checks, 2)
	assert.Equal(t, "db1", checks[0].Instance)
	assert.True(t, checks[0].OK())
	assert.Equal(t, "OK", checks[0].Status)
	assert.Equal(t, []string{"server:a"}, checks[0].Tags)
	assert.False(t, checks[1].OK())
	assert.Equal(t, "CRITICAL", checks[1].Status)
}

func TestNewSinkReusesRegisteredCollectors(t *testing.T) {
	reg := NewPromRegistry(prometheus.NewRegistry())
	a, err := NewSink(reg)
	require.NoError(t, err)
	b, err := NewSink(reg)
	require.NoError(t, err)

	a.ServiceCheck("rethinkdb.can_connect", submit.StatusWarning, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.status.WithLabelValues("rethinkdb.can_connect", "")))
}

func TestInstanceCycleRemovesSeriesNotResubmitted(t *testing.T) {
	s, _ := newTestSink(t)
	db1 := s.ForInstance("db1")

	db1.BeginCycle()
	db1.Gauge("rethinkdb.current_issues.total", 1, []string{"server:a", "issue_type:log_write_error"})
	db1.Gauge("rethinkdb.jobs.query.duration", 42, []string{"server:a", "client_address:10.0.0.7"})
	db1.EndCycle()

	issues := s.families["rethinkdb_current_issues_total"]
	jobs := s.families["rethinkdb_jobs_query_duration"]
	assert.Equal(t, 1, testutil.CollectAndCount(issues.gauge))
	assert.Equal(t, 1, testutil.CollectAndCount(jobs.gauge))

	// 问题已解决、查询已结束
	db1.BeginCycle()
	db1.EndCycle()

	assert.Equal(t, 0, testutil.CollectAndCount(issues.gauge))
	assert.Equal(t, 0, testutil.CollectAndCount(jobs.gauge))
}

func TestInstanceCycleReplacesReplicaState(t *testing.T) {
	s, _ := newTestSink(t)
	db1 := s.ForInstance("db1")
	name := "rethinkdb.table_status.shards.replicas.state"

	db1.BeginCycle()
	db1.Gauge(name, 1, []string{"server:a", "replica:b", "state:backfilling"})
	db1.EndCycle()

	db1.BeginCycle()
	db1.Gauge(name, 1, []string{"server:a", "replica:b", "state:ready"})
	db1.EndCycle()

	fam := s.families["rethinkdb_table_status_shards_replicas_state"]
	assert.Equal(t, 1, testutil.CollectAndCount(fam.gauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(fam.gauge.WithLabelValues("b", "a", "ready", "db1")))
}

func TestInstanceCycleKeepsOtherInstancesAndCounters(t *testing.T) {
	s, _ := newTestSink(t)
	db1 := s.ForInstance("db1")
	db2 := s.ForInstance("db2")
	total := "rethinkdb.stats.server.queries_total"

	db1.BeginCycle()
	db2.BeginCycle()
	db1.Gauge("rethinkdb.y", 1, []string{"server:a"})
	db2.Gauge("rethinkdb.y", 2, []string{"server:a"})
	db1.MonotonicCount(total, 100, []string{"server:a"})
	db1.EndCycle()
	db2.EndCycle()

	db1.BeginCycle()
	db1.EndCycle()

	y := s.families["rethinkdb_y"]
	assert.Equal(t, 1, testutil.CollectAndCount(y.gauge))
	assert.Equal(t, 2.0, testutil.ToFloat64(y.gauge.WithLabelValues("a", "db2")))

	// 基线保留，重新出现后按增量累加
	db1.BeginCycle()
	db1.MonotonicCount(total, 130, []string{"server:a"})
	db1.EndCycle()
	assert.Equal(t, 30.0, testutil.ToFloat64(s.families["rethinkdb_stats_server_queries_total"].count.WithLabelValues("a", "db1")))
}

func TestSubmissionsOutsideCycleAreKept(t *testing.T) {
	s, _ := newTestSink(t)
	db1 := s.ForInstance("db1")
	db1.Gauge("rethinkdb.z", 5, nil)

	db1.BeginCycle()
	db1.EndCycle()

	// 周期外提交的序列从未进入上一周期，不会被删除
	assert.Equal(t, 5.0, testutil.ToFloat64(s.families["rethinkdb_z"].gauge.WithLabelValues("db1")))
}

func TestReserveTagKeysPadsMissingLabels(t *testing.T) {
	s, _ := newTestSink(t)
	s.ReserveTagKeys([]string{"env:prod", "instance:x"})

	s.ForInstance("db1").Gauge("rethinkdb.y", 1, []string{"env:prod", "server:a"})
	s.ForInstance("db2").Gauge("rethinkdb.y", 2, []string{"server:a"})

	fam := s.families["rethinkdb_y"]
	assert.Equal(t, []string{"env", "server", "tag_instance", InstanceLabel}, fam.labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(fam.gauge.WithLabelValues("prod", "a", "", "db1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(fam.gauge.WithLabelValues("", "a", "", "db2")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.dropped.WithLabelValues("mismatch")))
}

func TestPadLabels(t *testing.T) {
	keys, values := padLabels([]string{"server"}, []string{"a"}, []string{"env", "server"})
	assert.Equal(t, []string{"env", "server"}, keys)
	assert.Equal(t, []string{"", "a"}, values)

	keys, values = padLabels([]string{"server"}, []string{"a"}, nil)
	assert.Equal(t, []string{"server"}, keys)
	assert.Equal(t, []string{"a"}, values)
}
