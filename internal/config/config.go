// Package config loads Keyvo settings from defaults, an optional config file
// and KEYVO_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/keyvo/internal/fingerprint"
	"github.com/FranksOps/keyvo/internal/upstream"
)

// EnvPrefix prefixes every environment override, e.g. KEYVO_SERVER_ADDR.
const EnvPrefix = "KEYVO"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type UpstreamConfig struct {
	WebSearchURL   string        `mapstructure:"web_search_url"`
	VideoSearchURL string        `mapstructure:"video_search_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	// DecodePolicy applies to toolbar XML bodies: ignore or replace.
	DecodePolicy string   `mapstructure:"decode_policy"`
	Fingerprint  string   `mapstructure:"fingerprint"`
	UserAgents   []string `mapstructure:"user_agents"`
	// UARotation is round_robin or random.
	UARotation string   `mapstructure:"ua_rotation"`
	Proxies    []string `mapstructure:"proxies"`
}

// User-Agent rotation modes.
const (
	RotateRoundRobin = "round_robin"
	RotateRandom     = "random"
)

// WebSearchDecode returns the parsed toolbar body decode policy.
func (u UpstreamConfig) WebSearchDecode() (upstream.DecodePolicy, error) {
	p, err := upstream.ParseDecodePolicy(u.DecodePolicy)
	if err != nil {
		return 0, fmt.Errorf("config: upstream.decode_policy: %w", err)
	}
	if p == upstream.DecodeRaw {
		return 0, errors.New("config: upstream.decode_policy must be ignore or replace")
	}
	return p, nil
}

// MetricsConfig controls the Prometheus listener. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("upstream.web_search_url", upstream.DefaultWebSearchURL)
	v.SetDefault("upstream.video_search_url", upstream.DefaultVideoSearchURL)
	v.SetDefault("upstream.timeout", time.Duration(0))
	v.SetDefault("upstream.max_redirects", 0)
	v.SetDefault("upstream.decode_policy", upstream.DecodeIgnore.String())
	v.SetDefault("upstream.ua_rotation", RotateRoundRobin)
	v.SetDefault("upstream.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("upstream.user_agents", []string{})
	v.SetDefault("upstream.proxies", []string{})

	v.SetDefault("metrics.port", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. With an empty path it looks for keyvo.yaml in the
// working directory and carries on with defaults when none exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("keyvo")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check on its own.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr must not be empty")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("config: upstream.timeout must not be negative, got %s", c.Upstream.Timeout)
	}
	if _, err := c.Upstream.WebSearchDecode(); err != nil {
		return err
	}
	if _, err := fingerprint.ParseProfile(c.Upstream.Fingerprint); err != nil {
		return fmt.Errorf("config: upstream.fingerprint: %w", err)
	}
	switch c.Upstream.UARotation {
	case RotateRoundRobin, RotateRandom:
	default:
		return fmt.Errorf("config: upstream.ua_rotation must be %s or %s, got %q",
			RotateRoundRobin, RotateRandom, c.Upstream.UARotation)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("config: metrics.port out of range: %d", c.Metrics.Port)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
