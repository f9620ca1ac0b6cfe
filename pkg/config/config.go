package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"github.com/telekom/splitwise-relay/pkg/splitwise"
)

const (
	DefaultPort              = 8080
	DefaultBaseURL           = splitwise.DefaultBaseURL
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// Splitwise holds the registered OAuth application and the state signing key.
type Splitwise struct {
	ClientID     string `yaml:"clientID" env:"SPLITWISE_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret" env:"SPLITWISE_CLIENT_SECRET"`
	RedirectURI  string `yaml:"redirectURI" env:"SPLITWISE_REDIRECT_URI"`
	// StateSecret keys the HMAC over OAuth state tokens. When empty the relay
	// still starts, but /auth/start answers 500 and every callback is rejected.
	StateSecret string `yaml:"stateSecret" env:"SPLITWISE_STATE_SECRET"`
	// BaseURL overrides the upstream host, e.g. for a local stub.
	BaseURL string `yaml:"baseURL" env:"SPLITWISE_BASE_URL"`
}

type Server struct {
	// Host is optional; empty listens on all interfaces.
	Host  string `yaml:"host" env:"RELAY_HOST"`
	Port  int    `yaml:"port" env:"PORT"`
	Debug bool   `yaml:"debug" env:"RELAY_DEBUG"`
	// ReadHeaderTimeout and ShutdownTimeout are Go duration strings (e.g. "10s").
	ReadHeaderTimeout string `yaml:"readHeaderTimeout" env:"RELAY_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   string `yaml:"shutdownTimeout" env:"RELAY_SHUTDOWN_TIMEOUT"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Splitwise Splitwise `yaml:"splitwise"`
}

// Load builds the relay configuration. If configPath is given, that YAML file
// is read first; environment variables are applied on top, and defaults fill
// whatever is still unset.
func Load(configPath ...string) (Config, error) {
	var config Config

	if len(configPath) > 0 && configPath[0] != "" {
		path := configPath[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("trying to open relay config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return config, fmt.Errorf("parse env: %w", err)
	}

	config.Defaults()
	return config, nil
}

// Defaults fills unset optional values.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Splitwise.BaseURL == "" {
		c.Splitwise.BaseURL = DefaultBaseURL
	}
}

// Missing lists the environment variables of required settings that are empty.
// The relay does not refuse to start on missing values; callers log them.
func (c Config) Missing() []string {
	var missing []string
	if c.Splitwise.ClientID == "" {
		missing = append(missing, "SPLITWISE_CLIENT_ID")
	}
	if c.Splitwise.ClientSecret == "" {
		missing = append(missing, "SPLITWISE_CLIENT_SECRET")
	}
	if c.Splitwise.RedirectURI == "" {
		missing = append(missing, "SPLITWISE_REDIRECT_URI")
	}
	if c.Splitwise.StateSecret == "" {
		missing = append(missing, "SPLITWISE_STATE_SECRET")
	}
	return missing
}

// ListenAddress returns host:port for the HTTP listener.
func (s Server) ListenAddress() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

func (s Server) GetReadHeaderTimeout() time.Duration {
	return parseDurationOrDefault(s.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

func (s Server) GetShutdownTimeout() time.Duration {
	return parseDurationOrDefault(s.ShutdownTimeout, DefaultShutdownTimeout)
}

// parseDurationOrDefault returns def for empty, invalid or non-positive values.
func parseDurationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
