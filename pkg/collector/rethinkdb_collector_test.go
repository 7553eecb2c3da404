package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/metrics"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
	"github.com/rethinkdb-collector/pkg/submit"
)

func TestRethinkDBCollectorRecordsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(reg))
	refused := errors.New("connection refused")
	dialer := rethinkdb.DialFunc(func(context.Context, rethinkdb.DialOptions) (rethinkdb.Connection, error) {
		return nil, refused
	})
	rec := submit.NewRecorder()
	cfg := rethinkdb.NewConfig(config.InstanceConfig{Name: "db1:28015", Host: "db1", Port: 28015})

	c := NewRethinkDBCollector(cfg, dialer, rec, factory)
	require.NoError(t, c.Init())
	assert.Equal(t, "rethinkdb:db1:28015", c.Name())

	err := c.Collect(context.Background())
	require.ErrorIs(t, err, refused)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.collectErrors.WithLabelValues(c.Name())))
	assert.Equal(t, 1, testutil.CollectAndCount(c.collectDuration))

	require.Len(t, rec.ServiceChecks(), 1)
	assert.Equal(t, submit.StatusCritical, rec.ServiceChecks()[0].Status)
	assert.NoError(t, c.Close())
}

func TestRethinkDBCollectorInitRejectsEmptyHost(t *testing.T) {
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
	c := NewRethinkDBCollector(rethinkdb.NewConfig(config.InstanceConfig{Name: "x"}), nil, submit.NewRecorder(), factory)
	assert.Error(t, c.Init())
}

func exportedSeries(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestRethinkDBCollectorReplacesInstanceSeries(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := metrics.NewPromRegistry(promReg)
	sink, err := metrics.NewSink(reg)
	require.NoError(t, err)
	sender := sink.ForInstance("db1:28015")

	sender.BeginCycle()
	sender.Gauge("rethinkdb.current_issues.total", 1, []string{"server:a"})
	sender.EndCycle()
	require.Equal(t, 1, exportedSeries(t, promReg, "rethinkdb_current_issues_total"))

	dialer := rethinkdb.DialFunc(func(context.Context, rethinkdb.DialOptions) (rethinkdb.Connection, error) {
		return nil, errors.New("connection refused")
	})
	cfg := rethinkdb.NewConfig(config.InstanceConfig{Name: "db1:28015", Host: "db1", Port: 28015})
	c := NewRethinkDBCollector(cfg, dialer, sender, metrics.NewMetricFactory(reg))

	require.Error(t, c.Collect(context.Background()))
	assert.Equal(t, 0, exportedSeries(t, promReg, "rethinkdb_current_issues_total"))
}
