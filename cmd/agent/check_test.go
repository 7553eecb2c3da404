package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb-collector/pkg/config"
	"github.com/rethinkdb-collector/pkg/rethinkdb"
	"github.com/rethinkdb-collector/pkg/submit"
)

func TestCheckInstancesReportsFailures(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Instances = []config.InstanceConfig{
		{Name: "db1:28015", Host: "db1", Port: 28015},
		{Name: "db2:28015", Host: "db2", Port: 28015},
	}
	refused := errors.New("connection refused")
	var dialed []string
	dialer := rethinkdb.DialFunc(func(_ context.Context, opts rethinkdb.DialOptions) (rethinkdb.Connection, error) {
		dialed = append(dialed, opts.Address)
		return nil, refused
	})

	var out bytes.Buffer
	err := checkInstances(context.Background(), &out, cfg, dialer)

	require.ErrorIs(t, err, refused)
	assert.Equal(t, []string{"db1:28015", "db2:28015"}, dialed)
	assert.Contains(t, out.String(), "== db1:28015")
	assert.Contains(t, out.String(), "== db2:28015")
	assert.Contains(t, out.String(), "rethinkdb.can_connect")
	assert.Contains(t, out.String(), "CRITICAL")
	assert.Contains(t, out.String(), "0 metrics submitted")
}

func TestPrintSubmissions(t *testing.T) {
	rec := submit.NewRecorder()
	rec.ServiceCheck(rethinkdb.ServiceCheckName, submit.StatusOK, []string{"server:node-a"})
	rec.Gauge("rethinkdb.stats.cluster.queries_per_sec", 12.5, []string{"server:node-a"})

	var out bytes.Buffer
	printSubmissions(&out, "db1:28015", rec, nil)

	assert.Contains(t, out.String(), "OK")
	assert.Contains(t, out.String(), "gauge")
	assert.Contains(t, out.String(), "12.5")
	assert.Contains(t, out.String(), "1 metrics submitted")
	assert.NotContains(t, out.String(), "error:")
}

func TestCheckCmdFlags(t *testing.T) {
	cmd := newCheckCmd()
	port, err := cmd.Flags().GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, port)
}
