package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/wirecall/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Auth.TokenEnv != DefaultTokenEnv {
		t.Errorf("Auth.TokenEnv = %q, want %q", cfg.Auth.TokenEnv, DefaultTokenEnv)
	}
	if cfg.HandshakeTimeout() != 10*time.Second {
		t.Errorf("HandshakeTimeout() = %v, want 10s", cfg.HandshakeTimeout())
	}
	if cfg.PingInterval() != 30*time.Second {
		t.Errorf("PingInterval() = %v, want 30s", cfg.PingInterval())
	}
	if cfg.ReadTimeout() != 0 {
		t.Errorf("ReadTimeout() = %v, want 0", cfg.ReadTimeout())
	}
	if cfg.Limits.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("Limits.MaxMessageSize = %d, want %d", cfg.Limits.MaxMessageSize, DefaultMaxMessageSize)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	content := `{
		"server": {
			"http": "https://platform.example.com/api",
			"ws": "wss://platform.example.com/ws"
		},
		"headers": {"X-Workspace": "research"},
		"timeouts": {"handshake": "3s"}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.HTTP != "https://platform.example.com/api" {
		t.Errorf("Server.HTTP = %q", cfg.Server.HTTP)
	}
	if cfg.Headers["X-Workspace"] != "research" {
		t.Errorf("Headers[X-Workspace] = %q, want research", cfg.Headers["X-Workspace"])
	}
	if cfg.HandshakeTimeout() != 3*time.Second {
		t.Errorf("HandshakeTimeout() = %v, want 3s", cfg.HandshakeTimeout())
	}
	// Unset fields get defaults
	if cfg.Timeouts.Write != DefaultWriteTimeout {
		t.Errorf("Timeouts.Write = %q, want %q", cfg.Timeouts.Write, DefaultWriteTimeout)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), tmpDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadFile(filepath.Join(tmpDir, ConfigFileName))
	assertCode(t, err, "E401")

	bad := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadFile(bad)
	assertCode(t, err, "E402")
}

func TestSaveTo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Server.WS = "ws://localhost:8080/ws"
	cfg.Metrics.Listen = ":9090"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if data[len(data)-1] != '\n' {
		t.Error("saved file should end with a newline")
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.WS != cfg.Server.WS {
		t.Errorf("Server.WS = %q, want %q", loaded.Server.WS, cfg.Server.WS)
	}
	if loaded.Metrics.Listen != ":9090" {
		t.Errorf("Metrics.Listen = %q, want :9090", loaded.Metrics.Listen)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("Save() without a path should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   string
	}{
		{
			name:   "valid http only",
			modify: func(c *Config) { c.Server.HTTP = "http://localhost:8080" },
		},
		{
			name:   "no server",
			modify: func(c *Config) {},
			code:   "E404",
		},
		{
			name:   "http base with ws scheme",
			modify: func(c *Config) { c.Server.HTTP = "ws://localhost:8080" },
			code:   "E403",
		},
		{
			name:   "ws url without host",
			modify: func(c *Config) { c.Server.WS = "wss://" },
			code:   "E403",
		},
		{
			name: "bad duration",
			modify: func(c *Config) {
				c.Server.WS = "ws://localhost/ws"
				c.Timeouts.Read = "soon"
			},
			code: "E403",
		},
		{
			name: "negative duration",
			modify: func(c *Config) {
				c.Server.WS = "ws://localhost/ws"
				c.Timeouts.Ping = "-1s"
			},
			code: "E403",
		},
		{
			name: "segment limit too large",
			modify: func(c *Config) {
				c.Server.WS = "ws://localhost/ws"
				c.Limits.MaxSegmentSize = HardMaxSegmentSize + 1
			},
			code: "E403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			assertCode(t, err, tt.code)
		})
	}
}

func TestToken(t *testing.T) {
	t.Setenv("WIRECALL_TEST_TOKEN", "from-env")

	cfg := New()
	cfg.Auth.TokenEnv = "WIRECALL_TEST_TOKEN"
	if got := cfg.Token(); got != "from-env" {
		t.Errorf("Token() = %q, want from-env", got)
	}

	cfg.Auth.Token = "inline"
	if got := cfg.Token(); got != "inline" {
		t.Errorf("Token() = %q, want inline", got)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("FindProjectRoot() = %q, want %q", root, want)
	}

	if !Exists(tmpDir) {
		t.Error("Exists() = false, want true")
	}
	if Exists(nested) {
		t.Error("Exists(nested) = true, want false")
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("error = %v, want *errors.Error with code %s", err, code)
	}
	if e.Code != code {
		t.Errorf("Code = %s, want %s", e.Code, code)
	}
}
