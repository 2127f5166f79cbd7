package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangohow/mcpgate/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcpgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "deepseek-coder", cfg.Upstream.DefaultModel)
	assert.Equal(t, []string{"deepseek-coder", "deepseek-chat"}, cfg.Upstream.Models)
	assert.Empty(t, cfg.Resource.ID)
	assert.Equal(t, ":8765", cfg.Server.Addr)
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, int64(4<<20), cfg.Server.MaxMessageBytes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: http://file:9000
  timeout: 45s
resource:
  id: deepseek
  start_timeout: 5s
server:
  addr: ":9999"
log:
  level: debug
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://file:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "deepseek", cfg.Resource.ID)
	assert.Equal(t, 5*time.Second, cfg.Resource.StartTimeout)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	t.Setenv("MCPGATE_SERVER_ADDR", ":7000")
	t.Setenv("DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")
	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "https://api.deepseek.com", cfg.Upstream.BaseURL)
	assert.Equal(t, "sk-env", cfg.Upstream.APIKey)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--addr", ":6000", "--log-level", "warn"}))
	cfg, err = Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	// 未设置的参数不覆盖环境变量
	assert.Equal(t, "https://api.deepseek.com", cfg.Upstream.BaseURL)
}

func TestPrefixedEnvWinsOverCompat(t *testing.T) {
	t.Setenv("DEEPSEEK_BASE_URL", "https://compat.example.com")
	t.Setenv("MCPGATE_UPSTREAM_BASE_URL", "https://primary.example.com")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example.com", cfg.Upstream.BaseURL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad url":      "upstream:\n  base_url: localhost\n",
		"bad model":    "upstream:\n  default_model: gpt\n",
		"bad timeout":  "upstream:\n  timeout: 0s\n",
		"bad ws path":  "server:\n  ws_path: ws\n",
		"bad resource": "resource:\n  id: deepseek\n  start_timeout: 0s\n",
		"bad shutdown": "server:\n  shutdown_timeout: -1s\n",
		"no workers":   "server:\n  max_concurrent_calls: 0\n",
		"no queue":     "server:\n  queue_size: 0\n",
		"bad rate":     "server:\n  rate_limit: -1\n",
		"no burst":     "server:\n  rate_limit: 5\n  rate_burst: 0\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content), nil)
			require.Error(t, err)
			assert.True(t, errors.IsReason(err, errors.ReasonOutOfRange))
		})
	}
}

func TestLoadRejectsZeroConcurrencyFromEnv(t *testing.T) {
	t.Setenv("MCPGATE_SERVER_MAX_CONCURRENT_CALLS", "0")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, errors.FromError(err).Message(), "server.max_concurrent_calls must be positive")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
