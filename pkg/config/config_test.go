package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty gateway url",
			mutate: func(c *Config) { c.Gateway.URL = "" },
		},
		{
			name:   "gateway url with bad scheme",
			mutate: func(c *Config) { c.Gateway.URL = "ftp://dvr.local" },
		},
		{
			name:   "zero request timeout",
			mutate: func(c *Config) { c.Gateway.RequestTimeout = 0 },
		},
		{
			name:   "unknown protocol",
			mutate: func(c *Config) { c.Connection.Protocols = []string{"webrtc", "rtsp"} },
		},
		{
			name:   "zero hls poll interval",
			mutate: func(c *Config) { c.Connection.HLSPollInterval = 0 },
		},
		{
			name:   "zero mjpeg fps",
			mutate: func(c *Config) { c.Connection.MJPEGMaxFPS = 0 },
		},
		{
			name: "no tracks requested",
			mutate: func(c *Config) {
				c.Connection.Video = false
				c.Connection.Audio = false
			},
		},
		{
			name:   "empty control address",
			mutate: func(c *Config) { c.Control.Address = "" },
		},
		{
			name: "rate limit enabled with zero rps",
			mutate: func(c *Config) {
				c.Control.RateLimit.Enabled = true
				c.Control.RateLimit.RequestsPerSecond = 0
			},
		},
		{
			name: "tracing enabled without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.JaegerURL = ""
			},
		},
		{
			name: "sample rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
		},
		{
			name: "redis enabled without address",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:1984", cfg.Gateway.URL)
	assert.True(t, cfg.Connection.EnableFallback)
}

func TestLoadParsesYAMLAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  url: wss://dvr.example.com:8443
  token: abc123
connection:
  protocols: [mse, hls]
  enable_fallback: false
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://dvr.example.com:8443", cfg.Gateway.URL)
	assert.Equal(t, "abc123", cfg.Gateway.Token)
	assert.Equal(t, []string{"mse", "hls"}, cfg.Connection.Protocols)
	assert.False(t, cfg.Connection.EnableFallback)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, ":8090", cfg.Control.Address)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  url: ""
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAMLINK_GATEWAY_URL", "ws://override:1984")
	t.Setenv("CAMLINK_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ws://override:1984", cfg.Gateway.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
