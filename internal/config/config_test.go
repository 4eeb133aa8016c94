package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
servers:
  - name: US East 1
    host: us-east.example.com
    port: 8080
    region: us-east
    location: New York
  - name: EU West 1
    host: eu-west.example.com
    port: 8080
    region: eu-west
    location: Amsterdam

monitor:
  probe_interval: 3s
  probe_timeout: 2s
  window_size: 30

dashboard:
  host: 0.0.0.0
  port: 8088

client:
  heartbeat_interval: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Servers)
	assert.Equal(t, 10*time.Second, cfg.Monitor.ProbeInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Monitor.PublishInterval.Duration())
	assert.Equal(t, 60, cfg.Monitor.WindowSize)
	assert.Equal(t, 2, cfg.Monitor.SuccessesUp)
	assert.Equal(t, 3, cfg.Monitor.FailuresDown)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "US East 1", cfg.Servers[0].Name)
	assert.Equal(t, 3*time.Second, cfg.Monitor.ProbeInterval.Duration())
	assert.Equal(t, 30, cfg.Monitor.WindowSize)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.3, cfg.Monitor.EWMAAlpha)
	assert.Equal(t, 8088, cfg.Dashboard.Port)
	// Bare numbers are read as seconds.
	assert.Equal(t, 30*time.Second, cfg.Client.HeartbeatInterval.Duration())
}

func TestLoadRejectsDuplicateServers(t *testing.T) {
	_, err := Load(writeConfig(t, `
servers:
  - {name: Alpha, host: a.example.com, port: 8080}
  - {name: alpha, host: b.example.com, port: 8081}
`))
	require.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	_, err := Load(writeConfig(t, `
servers:
  - {name: Alpha, host: a.example.com, port: 99999}
`))
	require.Error(t, err)
}

func TestEndpointsRegistry(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	reg := cfg.Endpoints()
	require.Equal(t, 2, reg.Len())

	// Ordered by derived ID.
	all := reg.All()
	assert.Equal(t, "eu-west-1", all[0].ID)
	assert.Equal(t, "us-east-1", all[1].ID)

	ep, err := reg.ByName("US East 1")
	require.NoError(t, err)
	assert.Equal(t, "us-east.example.com:8080", ep.Address())

	_, err = reg.ByID("nonexistent")
	assert.Error(t, err)
}
