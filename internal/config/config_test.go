package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, 42069, cfg.Server.GetReliablePort())
	assert.Equal(t, 42070, cfg.Server.GetUDPPort())
	assert.Equal(t, "tcp", cfg.Server.GetTransport())
	assert.Equal(t, 64, cfg.Server.GetTickRate())
	assert.Equal(t, 8, cfg.Server.GetForwardRadius())
	assert.Equal(t, 600, cfg.Server.GetAutosaveSec())
	assert.Equal(t, "file", cfg.Storage.GetBackend())
	assert.Equal(t, "saves", cfg.Storage.GetDir())
	assert.Equal(t, "world", cfg.World.GetName())
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  reliable_port: 5000
  udp_port: 5001
  transport: kcp
  tick_rate: 32
  forward_radius: 16
world:
  name: arena
storage:
  backend: badger
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 5000, cfg.Server.GetReliablePort())
	assert.Equal(t, "kcp", cfg.Server.GetTransport())
	assert.Equal(t, 32, cfg.Server.GetTickRate())
	assert.Equal(t, 16, cfg.Server.GetForwardRadius())
	assert.Equal(t, "arena", cfg.World.GetName())
	assert.Equal(t, "badger", cfg.Storage.GetBackend())
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Server: ServerConfig{Transport: "quic"}},
		{Storage: StorageConfig{Backend: "mysql"}},
		{Server: ServerConfig{ReliablePort: 7000, UDPPort: 7000}},
		{Server: ServerConfig{TickRate: 100000}},
		{Server: ServerConfig{MaxPlayers: 1000000}},
	}

	for i, cfg := range cases {
		assert.Error(t, cfg.Validate(), "Конфигурация %d должна быть отклонена", i)
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("VOXEL_PORT", "9999")

	var cfg Config
	assert.Equal(t, 9999, cfg.Server.GetReliablePort())

	// Значение из конфига приоритетнее переменной окружения
	cfg.Server.ReliablePort = 1234
	assert.Equal(t, 1234, cfg.Server.GetReliablePort())
}
