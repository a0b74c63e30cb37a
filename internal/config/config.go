package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/vango-dev/wirecall/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "wirecall.json"

	// DefaultTokenEnv is the environment variable read when auth.token is empty.
	DefaultTokenEnv = "WIRECALL_TOKEN"

	// DefaultHandshakeTimeout is the default WebSocket handshake timeout.
	DefaultHandshakeTimeout = "10s"

	// DefaultWriteTimeout is the default WebSocket write timeout.
	DefaultWriteTimeout = "10s"

	// DefaultPingInterval is the default keepalive ping interval.
	DefaultPingInterval = "30s"

	// DefaultMaxMessageSize is the default maximum inbound WebSocket message size.
	DefaultMaxMessageSize = 64 << 20

	// DefaultMaxSegmentSize is the default maximum declared segment length.
	DefaultMaxSegmentSize = 1 << 30

	// HardMaxSegmentSize is the largest accepted maxSegmentSize.
	HardMaxSegmentSize = 4 << 30
)

// Config represents the complete wirecall.json configuration.
type Config struct {
	// Server contains the endpoints of the remote platform.
	Server ServerConfig `json:"server"`

	// Auth contains credentials.
	Auth AuthConfig `json:"auth,omitempty"`

	// Headers are extra headers sent on both transports.
	Headers map[string]string `json:"headers,omitempty"`

	// Timeouts contains transport timeouts as duration strings (e.g. "10s").
	Timeouts TimeoutsConfig `json:"timeouts,omitempty"`

	// Limits contains decoding limits.
	Limits LimitsConfig `json:"limits,omitempty"`

	// Metrics contains the Prometheus endpoint configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains the endpoints of the remote platform.
type ServerConfig struct {
	// HTTP is the base URL of HTTP calls (e.g. "https://host/api").
	HTTP string `json:"http,omitempty"`

	// WS is the URL of the shared WebSocket (e.g. "wss://host/ws").
	WS string `json:"ws,omitempty"`
}

// AuthConfig contains credentials.
type AuthConfig struct {
	// Token is the bearer token. Prefer TokenEnv to keep it out of the file.
	Token string `json:"token,omitempty"`

	// TokenEnv names the environment variable holding the token.
	TokenEnv string `json:"tokenEnv,omitempty"`
}

// TimeoutsConfig contains transport timeouts.
type TimeoutsConfig struct {
	Handshake string `json:"handshake,omitempty"`
	Write     string `json:"write,omitempty"`

	// Read is the maximum silence on the WebSocket. Empty disables it.
	Read string `json:"read,omitempty"`

	// Ping is the keepalive interval. "0s" disables pings.
	Ping string `json:"ping,omitempty"`
}

// LimitsConfig contains decoding limits in bytes.
type LimitsConfig struct {
	MaxMessageSize int64  `json:"maxMessageSize,omitempty"`
	MaxSegmentSize uint64 `json:"maxSegmentSize,omitempty"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Listen is the address serving /metrics (e.g. ":9090"). Empty disables it.
	Listen string `json:"listen,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenEnv: DefaultTokenEnv,
		},
		Timeouts: TimeoutsConfig{
			Handshake: DefaultHandshakeTimeout,
			Write:     DefaultWriteTimeout,
			Ping:      DefaultPingInterval,
		},
		Limits: LimitsConfig{
			MaxMessageSize: DefaultMaxMessageSize,
			MaxSegmentSize: DefaultMaxSegmentSize,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for wirecall.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E401").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("E402").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E402").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E402").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	// The file may hold a token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.New("E503").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = DefaultTokenEnv
	}

	// Timeouts
	if c.Timeouts.Handshake == "" {
		c.Timeouts.Handshake = DefaultHandshakeTimeout
	}
	if c.Timeouts.Write == "" {
		c.Timeouts.Write = DefaultWriteTimeout
	}
	if c.Timeouts.Ping == "" {
		c.Timeouts.Ping = DefaultPingInterval
	}

	// Limits
	if c.Limits.MaxMessageSize == 0 {
		c.Limits.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Limits.MaxSegmentSize == 0 {
		c.Limits.MaxSegmentSize = DefaultMaxSegmentSize
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.HTTP == "" && c.Server.WS == "" {
		return errors.New("E404")
	}
	if err := checkURL("server.http", c.Server.HTTP, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("server.ws", c.Server.WS, "ws", "wss"); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"timeouts.handshake": c.Timeouts.Handshake,
		"timeouts.write":     c.Timeouts.Write,
		"timeouts.read":      c.Timeouts.Read,
		"timeouts.ping":      c.Timeouts.Ping,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return errors.New("E403").
				WithDetail(name + " must be a non-negative duration such as \"10s\", got " + value)
		}
	}

	if c.Limits.MaxMessageSize < 0 {
		return errors.New("E403").
			WithDetail("limits.maxMessageSize must not be negative")
	}
	if c.Limits.MaxSegmentSize > HardMaxSegmentSize {
		return errors.New("E403").
			WithDetail("limits.maxSegmentSize must not exceed 4 GiB")
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err == nil {
		for _, s := range schemes {
			if u.Scheme == s && u.Host != "" {
				return nil
			}
		}
	}
	return errors.New("E403").
		WithDetail(field + " must be a " + schemes[0] + " or " + schemes[1] + " URL, got " + raw)
}

// Token returns auth.token, or the value of the auth.tokenEnv variable
// when auth.token is empty.
func (c *Config) Token() string {
	if c.Auth.Token != "" {
		return c.Auth.Token
	}
	if c.Auth.TokenEnv != "" {
		return os.Getenv(c.Auth.TokenEnv)
	}
	return ""
}

// HandshakeTimeout returns timeouts.handshake.
func (c *Config) HandshakeTimeout() time.Duration {
	return parseDuration(c.Timeouts.Handshake)
}

// WriteTimeout returns timeouts.write.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Timeouts.Write)
}

// ReadTimeout returns timeouts.read, zero when unset.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Timeouts.Read)
}

// PingInterval returns timeouts.ping.
func (c *Config) PingInterval() time.Duration {
	return parseDuration(c.Timeouts.Ping)
}

// parseDuration parses a validated duration; invalid values yield zero.
func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing wirecall.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E401").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
