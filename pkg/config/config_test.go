package config

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadYAML(t *testing.T, doc string) (*Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return Load(v)
}

func TestParseInstanceDefaults(t *testing.T) {
	inst, err := ParseInstance(map[string]any{"host": " db1 "})
	require.NoError(t, err)

	assert.Equal(t, "db1", inst.Host)
	assert.Equal(t, DefaultPort, inst.Port)
	assert.Equal(t, "db1:28015", inst.Name)
	assert.Equal(t, 5*time.Second, inst.ConnectTimeout)
	assert.NoError(t, inst.Validate())
}

func TestParseInstanceWeakTypes(t *testing.T) {
	inst, err := ParseInstance(map[string]any{
		"name":            "primary",
		"host":            "db1",
		"port":            "28016",
		"connect_timeout": "2s",
		"tags":            "env:prod,team:db",
	})
	require.NoError(t, err)

	assert.Equal(t, 28016, inst.Port)
	assert.Equal(t, "primary", inst.Name)
	assert.Equal(t, 2*time.Second, inst.ConnectTimeout)
	assert.Equal(t, []string{"env:prod", "team:db"}, inst.Tags)
}

func TestParseInstanceRejectsUnknownKeys(t *testing.T) {
	_, err := ParseInstance(map[string]any{"host": "db1", "prot": 1})
	assert.Error(t, err)
}

func TestInstanceValidate(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"missing host", map[string]any{}},
		{"port too large", map[string]any{"host": "db1", "port": 70000}},
		{"empty tag", map[string]any{"host": "db1", "tags": []string{"ok:1", " "}}},
		{"missing ca file", map[string]any{"host": "db1", "tls_ca_cert": "/does/not/exist.pem"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst, err := ParseInstance(tc.raw)
			require.NoError(t, err)
			assert.Error(t, inst.Validate())
		})
	}
}

func TestLoadInstances(t *testing.T) {
	doc := fmt.Sprintf(`
monitor:
  interval: 30s
log:
  path: %s
instances:
  - host: db1
    port: 28015
  - host: db2
    tags: [env:prod]
`, t.TempDir())

	cfg, err := loadYAML(t, doc)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	require.Len(t, cfg.Instances, 2)
	assert.Equal(t, "db1:28015", cfg.Instances[0].Name)
	assert.Equal(t, "db2", cfg.Instances[1].Host)
	assert.Equal(t, []string{"env:prod"}, cfg.Instances[1].Tags)
	// 未覆盖的字段保持默认值
	assert.Equal(t, "0.0.0.0:9091", cfg.Server.Addr)
}

func TestLoadRequiresInstance(t *testing.T) {
	_, err := loadYAML(t, fmt.Sprintf("log:\n  path: %s\n", t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one rethinkdb instance")
}

func TestLoadRejectsDuplicateInstanceNames(t *testing.T) {
	doc := fmt.Sprintf(`
log:
  path: %s
instances:
  - host: db1
  - host: db1
`, t.TempDir())

	_, err := loadYAML(t, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	doc := fmt.Sprintf(`
monitor:
  interval: 500ms
log:
  path: %s
instances:
  - host: db1
`, t.TempDir())

	_, err := loadYAML(t, doc)
	assert.Error(t, err)
}

func TestLoadConfigWithCliFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/agent.yaml"
	doc := fmt.Sprintf("log:\n  path: %s\ninstances:\n  - host: db1\n", dir)
	require.NoError(t, writeFile(file, doc))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", file, "")
	cmd.Flags().String("log.level", "info", "")
	require.NoError(t, cmd.Flags().Set("log.level", "debug"))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Instances, 1)
}

func TestLoadConfigWithCliInstanceOverride(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/agent.yaml"
	doc := fmt.Sprintf("log:\n  path: %s\ninstances:\n  - host: db1\n  - host: db2\n", dir)
	require.NoError(t, writeFile(file, doc))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", file, "")

	cfg, err := LoadConfigWithCli(cmd, WithInstances(map[string]any{"host": "db9", "port": 28099}))
	require.NoError(t, err)
	require.Len(t, cfg.Instances, 1)
	assert.Equal(t, "db9:28099", cfg.Instances[0].Name)
}

func TestLogValidate(t *testing.T) {
	l := NewDefaultConfig().Log
	l.Path = t.TempDir()
	assert.NoError(t, l.Validate())

	l.Format = "xml"
	assert.Error(t, l.Validate())

	l = NewDefaultConfig().Log
	l.Path = t.TempDir()
	l.MaxAge, l.MaxBackup = 0, 0
	assert.Error(t, l.Validate())
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
