package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the client and reference-server configuration.
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	UI      UIConfig      `yaml:"ui" mapstructure:"ui"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
}

type APIConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ReadRetries int           `yaml:"read_retries" mapstructure:"read_retries"`
	Platform    string        `yaml:"platform" mapstructure:"platform"`
	AppVersion  string        `yaml:"app_version" mapstructure:"app_version"`
	Locale      string        `yaml:"locale" mapstructure:"locale"`
}

type UIConfig struct {
	TrackWidth int `yaml:"track_width" mapstructure:"track_width"` // cells
	// PreserveProgress keeps a manual in-progress value when in_progress is re-selected.
	PreserveProgress bool `yaml:"preserve_progress" mapstructure:"preserve_progress"`
}

type SessionConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // empty = stderr only
	Level      string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // MB
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // days
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // files
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	JWTSecret      string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Latency        time.Duration `yaml:"latency" mapstructure:"latency"`
}

func DefaultConfig() *Config {
	sessionPath := "session.yaml"
	if dir, err := os.UserConfigDir(); err == nil {
		sessionPath = filepath.Join(dir, "goaltracker", "session.yaml")
	}

	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8080",
			Timeout:     10 * time.Second,
			ReadRetries: 3,
			Platform:    "cli",
			AppVersion:  "dev",
		},
		UI: UIConfig{
			TrackWidth: 40,
		},
		Session: SessionConfig{Path: sessionPath},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    5,
			MaxAge:     14,
			MaxBackups: 5,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			JWTSecret:      "SUPER_SECRET_KEY_CHANGE_ME",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads configFile (optional) on top of the defaults, then GOALTRACKER_*
// environment variables. API_BASE_URL, JWT_SECRET and LOG_LEVEL are honoured
// as short forms.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("GOALTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.base_url", "GOALTRACKER_API_BASE_URL", "API_BASE_URL")
	_ = v.BindEnv("server.jwt_secret", "GOALTRACKER_SERVER_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("log.level", "GOALTRACKER_LOG_LEVEL", "LOG_LEVEL")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("goaltracker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "goaltracker"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.read_retries", d.API.ReadRetries)
	v.SetDefault("api.platform", d.API.Platform)
	v.SetDefault("api.app_version", d.API.AppVersion)
	v.SetDefault("api.locale", d.API.Locale)

	v.SetDefault("ui.track_width", d.UI.TrackWidth)
	v.SetDefault("ui.preserve_progress", d.UI.PreserveProgress)

	v.SetDefault("session.path", d.Session.Path)

	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.jwt_secret", d.Server.JWTSecret)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.latency", d.Server.Latency)
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.ReadRetries < 0 {
		return fmt.Errorf("api.read_retries must not be negative")
	}
	if c.UI.TrackWidth <= 0 {
		return fmt.Errorf("ui.track_width must be positive, got %d", c.UI.TrackWidth)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret must be set")
	}
	return nil
}
