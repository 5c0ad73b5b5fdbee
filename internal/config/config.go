package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"sherpa/internal/locale"
)

// EnvPrefix marks environment variables that override configuration keys,
// e.g. SHERPA_API_HOST for api.host.
const EnvPrefix = "SHERPA_"

// Config holds all application configuration
type Config struct {
	API     APIConfig     `koanf:"api"`
	Chat    ChatConfig    `koanf:"chat"`
	Voice   VoiceConfig   `koanf:"voice"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// APIConfig locates the dialogue service.
type APIConfig struct {
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// ChatConfig tunes the conversation.
type ChatConfig struct {
	// Language is the default language. Empty means detect it from the host
	// locale.
	Language string        `koanf:"language"`
	Delay    time.Duration `koanf:"delay"`
}

// VoiceConfig controls spoken replies.
type VoiceConfig struct {
	Enabled bool    `koanf:"enabled"`
	Command string  `koanf:"command"` // empty means auto-detect
	Rate    float64 `koanf:"rate"`
	Pitch   float64 `koanf:"pitch"`
}

// StoreConfig selects where the session is remembered.
type StoreConfig struct {
	Backend string `koanf:"backend"` // file, sqlite, redis or memory
	Path    string `koanf:"path"`
	Redis   string `koanf:"redis"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// MetricsConfig exposes Prometheus collectors. An empty Addr serves nothing.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:    "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
		},
		Chat: ChatConfig{
			Delay: 600 * time.Millisecond,
		},
		Voice: VoiceConfig{
			Enabled: true,
			Rate:    0.85,
			Pitch:   0.95,
		},
		Store: StoreConfig{
			Backend: "file",
			Redis:   "redis://localhost:6379/0",
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
	}
}

// defaults flattens NewConfig for the confmap provider.
func defaults() map[string]interface{} {
	d := NewConfig()
	return map[string]interface{}{
		"api.host":      d.API.Host,
		"api.timeout":   d.API.Timeout,
		"chat.language": d.Chat.Language,
		"chat.delay":    d.Chat.Delay,
		"voice.enabled": d.Voice.Enabled,
		"voice.command": d.Voice.Command,
		"voice.rate":    d.Voice.Rate,
		"voice.pitch":   d.Voice.Pitch,
		"store.backend": d.Store.Backend,
		"store.path":    d.Store.Path,
		"store.redis":   d.Store.Redis,
		"log.level":     d.Log.Level,
		"log.pretty":    d.Log.Pretty,
		"metrics.addr":  d.Metrics.Addr,
	}
}

// DefaultPaths are searched in order when no config file is given.
var DefaultPaths = []string{"./sherpa.toml", "$HOME/.sherpa.toml"}

// LoadConfig layers defaults, the TOML file at configPath (or the first of
// DefaultPaths that exists) and SHERPA_ environment variables. A .env file in
// the working directory is loaded into the environment first.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range DefaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.Host == "" {
		return fmt.Errorf("api host cannot be empty")
	}
	u, err := url.Parse(c.API.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api host must be an http(s) URL, got %q", c.API.Host)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.Chat.Language != "" {
		if _, ok := locale.Parse(c.Chat.Language); !ok {
			return fmt.Errorf("unsupported language %q (want one of %v)", c.Chat.Language, locale.Supported)
		}
	}
	if c.Chat.Delay < 0 {
		return fmt.Errorf("chat delay cannot be negative")
	}
	if c.Voice.Rate <= 0 || c.Voice.Rate > 2 {
		return fmt.Errorf("voice rate must be in (0, 2]")
	}
	if c.Voice.Pitch <= 0 || c.Voice.Pitch > 2 {
		return fmt.Errorf("voice pitch must be in (0, 2]")
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics addr must be host:port, got %q", c.Metrics.Addr)
		}
	}
	switch c.Store.Backend {
	case "file", "sqlite", "memory":
	case "redis":
		if c.Store.Redis == "" {
			return fmt.Errorf("redis backend needs store.redis")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Language resolves the default conversation language: the configured one,
// else the host locale read through getenv, else Italian.
func (c *Config) Language(getenv func(string) string) locale.Language {
	if lang, ok := locale.Parse(c.Chat.Language); ok {
		return lang
	}
	if lang, ok := locale.Detect(getenv); ok {
		return lang
	}
	return locale.Default
}

// SessionPath returns the store location, defaulting by backend to a file
// under ~/.sherpa.
func (c *Config) SessionPath() string {
	if c.Store.Path != "" {
		return expandHome(c.Store.Path)
	}
	name := "session.json"
	if c.Store.Backend == "sqlite" {
		name = "session.db"
	}
	return filepath.Join(getHomeDir(), ".sherpa", name)
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return getHomeDir() + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

const sampleConfig = `# sherpa configuration

[api]
host = "http://127.0.0.1:8000"
timeout = "30s"

[chat]
# it, en or es; leave empty to follow the system locale
language = ""
delay = "600ms"

[voice]
enabled = true
# espeak-ng, espeak or say; leave empty to auto-detect
command = ""
rate = 0.85
pitch = 0.95

[store]
# file, sqlite, redis or memory
backend = "file"
path = ""
redis = "redis://localhost:6379/0"

[log]
level = "warn"
pretty = true

[metrics]
# host:port serving /metrics, e.g. "127.0.0.1:9464"; leave empty to disable
addr = ""
`

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}
