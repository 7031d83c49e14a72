package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"debtease/cmd/internal/auth/session"
)

const envPrefix = "DEBTEASE"

var ErrConfig = errors.New("app: invalid config")

// Config is read from DEBTEASE_* environment variables, an optional .env
// file, and command-line flags, in increasing order of precedence.
type Config struct {
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	WSURL      string `mapstructure:"WS_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	HTTPTimeout      time.Duration `mapstructure:"HTTP_TIMEOUT"`
	WSConnectTimeout time.Duration `mapstructure:"WS_CONNECT_TIMEOUT"`

	SessionFile     string        `mapstructure:"SESSION_FILE"`
	SessionRedisURL string        `mapstructure:"SESSION_REDIS_URL"`
	SessionProfile  string        `mapstructure:"SESSION_PROFILE"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`

	// MetricsAddr, when set, serves Prometheus metrics while long-running
	// commands (watch) are active.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// DefaultConfig targets a backend on localhost:8080.
func DefaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		APIBaseURL:       "http://localhost:8080/api",
		WSURL:            "ws://localhost:8080/ws/websocket",
		LogLevel:         "info",
		LogFormat:        "pretty",
		HTTPTimeout:      30 * time.Second,
		WSConnectTimeout: 10 * time.Second,
		SessionFile:      sc.File,
		SessionProfile:   sc.Profile,
		SessionTTL:       sc.RedisTTL,
	}
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"api-url":      "API_BASE_URL",
	"ws-url":       "WS_URL",
	"log-level":    "LOG_LEVEL",
	"log-format":   "LOG_FORMAT",
	"session-file": "SESSION_FILE",
	"redis-url":    "SESSION_REDIS_URL",
	"profile":      "SESSION_PROFILE",
	"metrics-addr": "METRICS_ADDR",
	"http-timeout": "HTTP_TIMEOUT",
	"ws-timeout":   "WS_CONNECT_TIMEOUT",
}

// LoadConfig merges defaults, envFile (when it exists), the environment and
// flags, then validates the result. flags may be nil.
func LoadConfig(envFile string, flags *pflag.FlagSet) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)

	def := DefaultConfig()
	defaults := map[string]any{
		"API_BASE_URL":       def.APIBaseURL,
		"WS_URL":             def.WSURL,
		"LOG_LEVEL":          def.LogLevel,
		"LOG_FORMAT":         def.LogFormat,
		"HTTP_TIMEOUT":       def.HTTPTimeout,
		"WS_CONNECT_TIMEOUT": def.WSConnectTimeout,
		"SESSION_FILE":       def.SessionFile,
		"SESSION_REDIS_URL":  def.SessionRedisURL,
		"SESSION_PROFILE":    def.SessionProfile,
		"SESSION_TTL":        def.SessionTTL,
		"METRICS_ADDR":       def.MetricsAddr,
	}
	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error wrapping ErrConfig describing the first problem.
func (c Config) Validate() error {
	if err := checkURL(c.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("%w: api base url: %v", ErrConfig, err)
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("%w: ws url: %v", ErrConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("%w: log format %q", ErrConfig, c.LogFormat)
	}
	if c.HTTPTimeout <= 0 || c.WSConnectTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrConfig)
	}
	if err := c.Session().Validate(); err != nil {
		return fmt.Errorf("%w: session: %v", ErrConfig, err)
	}
	return nil
}

// Session is the persistence part of c.
func (c Config) Session() session.Config {
	return session.Config{
		File:     c.SessionFile,
		RedisURL: c.SessionRedisURL,
		Profile:  c.SessionProfile,
		RedisTTL: c.SessionTTL,
	}
}

// String masks the Redis credentials.
func (c Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "api_base_url=%s\n", c.APIBaseURL)
	fmt.Fprintf(&sb, "ws_url=%s\n", c.WSURL)
	fmt.Fprintf(&sb, "log=%s/%s\n", c.LogLevel, c.LogFormat)
	fmt.Fprintf(&sb, "http_timeout=%s ws_connect_timeout=%s\n", c.HTTPTimeout, c.WSConnectTimeout)
	switch {
	case c.SessionRedisURL != "":
		fmt.Fprintf(&sb, "session=redis %s profile=%s ttl=%s\n", redactURL(c.SessionRedisURL), c.SessionProfile, c.SessionTTL)
	case c.SessionFile != "":
		fmt.Fprintf(&sb, "session=file %s\n", c.SessionFile)
	default:
		sb.WriteString("session=memory\n")
	}
	if c.MetricsAddr != "" {
		fmt.Fprintf(&sb, "metrics_addr=%s\n", c.MetricsAddr)
	}
	return sb.String()
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q: want %s://host", raw, strings.Join(schemes, " or "))
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return u.Redacted()
}
