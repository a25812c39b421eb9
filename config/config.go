package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type WS struct {
	PingPeriod   time.Duration `yaml:"pingPeriod"`
	PongWait     time.Duration `yaml:"pongWait"`
	WriteWait    time.Duration `yaml:"writeWait"`
	SendBuffer   int           `yaml:"sendBuffer"`
	ReadLimit    int64         `yaml:"readLimit"`
	MessageRate  float64       `yaml:"messageRate"`  // inbound messages per second
	MessageBurst int           `yaml:"messageBurst"` // per connection
}

type Auth struct {
	Mode          string        `yaml:"mode"` // none|jwt
	PublicKeyPath string        `yaml:"publicKeyPath"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

type Emit struct {
	// KeyEnv names the env var holding the bearer key for /notify.
	// Unset or empty key leaves the endpoint open.
	KeyEnv string `yaml:"keyEnv"`
}

// Key returns the emit key resolved from the environment.
func (e Emit) Key() string {
	if e.KeyEnv == "" {
		return ""
	}
	return os.Getenv(e.KeyEnv)
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // notify-hub
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	WS      WS      `yaml:"ws"`
	Auth    Auth    `yaml:"auth"`
	Emit    Emit    `yaml:"emit"`
	CORS    CORS    `yaml:"cors"`
	Logging Logging `yaml:"logging"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml). A missing file
// is not an error: defaults and NOTIFY_* env overrides still apply.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("NOTIFY_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("NOTIFY_AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("NOTIFY_AUTH_PUBLIC_KEY_PATH"); v != "" {
		c.Auth.PublicKeyPath = v
	}
	if v := os.Getenv("NOTIFY_CORS_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("NOTIFY_LOG_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NOTIFY_LOG_DEBUG: %w", err)
		}
		c.Logging.Debug = b
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.WS.PongWait == 0 {
		c.WS.PongWait = 60 * time.Second
	}
	if c.WS.PingPeriod == 0 {
		c.WS.PingPeriod = c.WS.PongWait * 9 / 10
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		return errors.New("ws.pingPeriod must be less than ws.pongWait")
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = 10 * time.Second
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 64
	}
	if c.WS.SendBuffer < 0 {
		return errors.New("ws.sendBuffer must be > 0")
	}
	if c.WS.ReadLimit == 0 {
		c.WS.ReadLimit = 4096
	}
	if c.WS.MessageRate == 0 {
		c.WS.MessageRate = 5
	}
	if c.WS.MessageBurst == 0 {
		c.WS.MessageBurst = 10
	}

	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case "":
		c.Auth.Mode = AuthModeNone
	case AuthModeNone:
	case AuthModeJWT:
		if c.Auth.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required when auth.mode is jwt")
		}
		if c.Auth.ClockSkew < 0 || c.Auth.ClockSkew > time.Minute {
			return errors.New("auth.clockSkew must be in [0..1m]")
		}
	default:
		return fmt.Errorf("auth.mode %q unknown: want none|jwt", c.Auth.Mode)
	}

	if c.Emit.KeyEnv == "" {
		c.Emit.KeyEnv = "NOTIFY_EMIT_KEY"
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "notify-hub"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
