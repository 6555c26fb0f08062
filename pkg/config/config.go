package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Gateway struct {
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token,omitempty"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"gateway"`

	Connection struct {
		Protocols       []string      `yaml:"protocols"`
		EnableFallback  bool          `yaml:"enable_fallback"`
		HLSPollInterval time.Duration `yaml:"hls_poll_interval"`
		MJPEGMaxFPS     float64       `yaml:"mjpeg_max_fps"`
		Video           bool          `yaml:"video"`
		Audio           bool          `yaml:"audio"`
	} `yaml:"connection"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Control struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

		RateLimit struct {
			Enabled           bool    `yaml:"enabled"`
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"control"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
}

var knownProtocols = map[string]bool{
	"webrtc": true,
	"mse":    true,
	"hls":    true,
	"mjpeg":  true,
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Gateway
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url must not be empty")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("gateway.url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway.request_timeout must be > 0")
	}

	// Connection
	for _, p := range c.Connection.Protocols {
		if !knownProtocols[p] {
			return fmt.Errorf("connection.protocols contains unknown protocol %q", p)
		}
	}
	if c.Connection.HLSPollInterval <= 0 {
		return fmt.Errorf("connection.hls_poll_interval must be > 0")
	}
	if c.Connection.MJPEGMaxFPS <= 0 {
		return fmt.Errorf("connection.mjpeg_max_fps must be > 0")
	}
	if !c.Connection.Video && !c.Connection.Audio {
		return fmt.Errorf("connection must request at least one of video or audio")
	}

	// Control
	if c.Control.Address == "" {
		return fmt.Errorf("control.address must not be empty")
	}
	if c.Control.ReadTimeout <= 0 {
		return fmt.Errorf("control.read_timeout must be > 0")
	}
	if c.Control.WriteTimeout <= 0 {
		return fmt.Errorf("control.write_timeout must be > 0")
	}
	if c.Control.ShutdownTimeout <= 0 {
		return fmt.Errorf("control.shutdown_timeout must be > 0")
	}
	if c.Control.RateLimit.Enabled {
		if c.Control.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("control.rate_limit.requests_per_second must be > 0 when enabled")
		}
		if c.Control.RateLimit.Burst <= 0 {
			return fmt.Errorf("control.rate_limit.burst must be > 0 when enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Gateway.URL = "ws://localhost:1984"
	cfg.Gateway.RequestTimeout = 10 * time.Second

	cfg.Connection.Protocols = []string{"webrtc", "mse", "hls", "mjpeg"}
	cfg.Connection.EnableFallback = true
	cfg.Connection.HLSPollInterval = 2 * time.Second
	cfg.Connection.MJPEGMaxFPS = 10
	cfg.Connection.Video = true
	cfg.Connection.Audio = true

	cfg.Control.Address = ":8090"
	cfg.Control.ReadTimeout = 30 * time.Second
	cfg.Control.WriteTimeout = 30 * time.Second
	cfg.Control.ShutdownTimeout = 30 * time.Second
	cfg.Control.RateLimit.Enabled = false
	cfg.Control.RateLimit.RequestsPerSecond = 50
	cfg.Control.RateLimit.Burst = 100

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("CAMLINK_GATEWAY_URL"); u != "" {
		c.Gateway.URL = u
	}
	if token := os.Getenv("CAMLINK_GATEWAY_TOKEN"); token != "" {
		c.Gateway.Token = token
	}
	if addr := os.Getenv("CAMLINK_CONTROL_ADDRESS"); addr != "" {
		c.Control.Address = addr
	}
	if level := os.Getenv("CAMLINK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("CAMLINK_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
