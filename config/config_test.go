package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, 60*time.Second, cfg.WS.PongWait)
	assert.Equal(t, 54*time.Second, cfg.WS.PingPeriod)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Equal(t, AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, "NOTIFY_EMIT_KEY", cfg.Emit.KeyEnv)
	assert.Equal(t, "notify-hub", cfg.Logging.Service)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 25*time.Second, cfg.WS.PingPeriod)
	assert.Equal(t, 30*time.Second, cfg.Auth.ClockSkew)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOTIFY_HTTP_ADDR", ":9999")
	t.Setenv("NOTIFY_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("NOTIFY_LOG_DEBUG", "true")

	cfg, err := Load(writeConfig(t, "http:\n  addr: \":1\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Logging.Debug)

	t.Setenv("NOTIFY_LOG_DEBUG", "maybe")
	_, err = Load(writeConfig(t, ""))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":        "http: [",
		"unknown mode":    "auth:\n  mode: basic\n",
		"jwt without key": "auth:\n  mode: jwt\n",
		"skew too large":  "auth:\n  mode: jwt\n  publicKeyPath: k.pem\n  clockSkew: 5m\n",
		"ping >= pong":    "ws:\n  pingPeriod: 60s\n  pongWait: 30s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestEmitKey(t *testing.T) {
	t.Setenv("TEST_EMIT_KEY", "s3cret")
	assert.Equal(t, "s3cret", Emit{KeyEnv: "TEST_EMIT_KEY"}.Key())
	assert.Empty(t, Emit{}.Key())
}
