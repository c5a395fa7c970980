package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// EnvPrefix prefixes every environment override, e.g. LIVESTATE_SERVER_PORT.
const EnvPrefix = "LIVESTATE_"

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Routes  RoutesConfig  `yaml:"routes" envPrefix:"ROUTES_"`
	Host    HostConfig    `yaml:"host" envPrefix:"HOST_"`
	Wedding WeddingConfig `yaml:"wedding" envPrefix:"WEDDING_"`
	Tunnel  TunnelConfig  `yaml:"tunnel" envPrefix:"TUNNEL_"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Host           string   `yaml:"host" env:"HOST"`
	Port           int      `yaml:"port" env:"PORT"`
	StaticDir      string   `yaml:"static_dir" env:"STATIC_DIR"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig controls each WebSocket connection
type SessionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	ClientTimeout     time.Duration `yaml:"client_timeout" env:"CLIENT_TIMEOUT"`
	InboxSize         int           `yaml:"inbox_size" env:"INBOX_SIZE"`
	MaxMessageSize    int64         `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// RoutesConfig selects where new connections land
type RoutesConfig struct {
	Initial string `yaml:"initial" env:"INITIAL"`
}

// HostConfig controls every route host
type HostConfig struct {
	InboxSize int `yaml:"inbox_size" env:"INBOX_SIZE"`
}

// WeddingConfig holds the quiz questions
type WeddingConfig struct {
	Questions []string `yaml:"questions" env:"QUESTIONS" envSeparator:"|"`
}

// TunnelConfig controls the optional ngrok tunnel
type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	AuthToken string `yaml:"auth_token" env:"AUTH_TOKEN"`
	Domain    string `yaml:"domain" env:"DOMAIN"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Session: SessionConfig{
			HeartbeatInterval: 5 * time.Second,
			ClientTimeout:     10 * time.Second,
			InboxSize:         256,
			MaxMessageSize:    4096,
		},
		Routes: RoutesConfig{
			Initial: "/counter",
		},
		Host: HostConfig{
			InboxSize: 64,
		},
		Wedding: WeddingConfig{
			Questions: []string{
				"Who can jump higher?",
				"Who can pitch a tent faster?",
				"Who sings louder?",
			},
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to the defaults when path is
// empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if !errors.Is(err, ErrConfigNotFound) {
			return cfg, err
		}
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Session.HeartbeatInterval <= 0 {
		problems = append(problems, "session.heartbeat_interval must be positive")
	}
	if c.Session.ClientTimeout <= c.Session.HeartbeatInterval {
		problems = append(problems, "session.client_timeout must exceed session.heartbeat_interval")
	}
	if c.Session.InboxSize <= 0 {
		problems = append(problems, "session.inbox_size must be positive")
	}
	if c.Session.MaxMessageSize <= 0 {
		problems = append(problems, "session.max_message_size must be positive")
	}
	if !strings.HasPrefix(c.Routes.Initial, "/") {
		problems = append(problems, fmt.Sprintf("routes.initial %q must start with a slash", c.Routes.Initial))
	}
	if c.Host.InboxSize <= 0 {
		problems = append(problems, "host.inbox_size must be positive")
	}
	if len(c.Wedding.Questions) == 0 {
		problems = append(problems, "wedding.questions cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
