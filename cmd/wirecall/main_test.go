package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/wirecall/internal/config"
	"github.com/vango-dev/wirecall/pkg/client"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := run(ctx, append(args, "--no-color"), strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// startMock serves the demo platform and returns a config file pointing at it.
func startMock(t *testing.T, token string) (cfgPath string) {
	t.Helper()
	t.Setenv(config.DefaultTokenEnv, "")
	srv := httptest.NewServer(newMockServer(&globals{
		token:  token,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, 10*time.Millisecond))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.New()
	cfg.Server.HTTP = srv.URL
	cfg.Server.WS = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfgPath = filepath.Join(dir, config.ConfigFileName)
	if err := cfg.SaveTo(cfgPath); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func decodeCall(t *testing.T, out string) callOutput {
	t.Helper()
	var co callOutput
	if err := json.Unmarshal([]byte(out), &co); err != nil {
		t.Fatalf("stdout is not a call result: %v\n%s", err, out)
	}
	return co
}

// compact strips the indentation printJSON adds to embedded values.
func compact(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		t.Fatalf("compact %s: %v", raw, err)
	}
	return buf.String()
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, "", "init", "--dir", dir, "--http", "http://localhost:8080", "-H", "X-Workspace: research")
	if res.code != 0 {
		t.Fatalf("init exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP != "http://localhost:8080" {
		t.Errorf("Server.HTTP = %q", cfg.Server.HTTP)
	}
	if cfg.Headers["X-Workspace"] != "research" {
		t.Errorf("Headers = %v", cfg.Headers)
	}

	res = runCLI(t, "", "init", "--dir", dir)
	if res.code == 0 {
		t.Error("init over an existing file should fail without --force")
	}
	res = runCLI(t, "", "init", "--dir", dir, "--force")
	if res.code != 0 {
		t.Errorf("init --force exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
}

func TestCallTransports(t *testing.T) {
	cfgPath := startMock(t, "")

	for _, transport := range []string{"http", "ws"} {
		t.Run(transport, func(t *testing.T) {
			res := runCLI(t, "", "call", "echo", "echo", `{"a":1}`, "--config", cfgPath, "--transport", transport)
			if res.code != 0 {
				t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
			}
			co := decodeCall(t, res.stdout)
			if co.Transport != transport {
				t.Errorf("transport = %q, want %q", co.Transport, transport)
			}
			if co.Delivery != "sent" {
				t.Errorf("delivery = %q, want sent", co.Delivery)
			}
			if compact(t, co.Result) != `{"a":1}` {
				t.Errorf("result = %s, want {\"a\":1}", co.Result)
			}
		})
	}
}

func TestCallWSIfAvailable(t *testing.T) {
	cfgPath := startMock(t, "")

	res := runCLI(t, "", "call", "echo", "echo", "--config", cfgPath, "--transport", "ws_if_available")
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	co := decodeCall(t, res.stdout)
	if co.Delivery != "not_sent" {
		t.Errorf("delivery = %q, want not_sent", co.Delivery)
	}
	if co.Result != nil {
		t.Errorf("result = %s, want none", co.Result)
	}
}

func TestCallParamsFromStdin(t *testing.T) {
	cfgPath := startMock(t, "")

	res := runCLI(t, `["x","y"]`, "call", "echo", "echo", "@-", "--config", cfgPath)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if co := decodeCall(t, res.stdout); compact(t, co.Result) != `["x","y"]` {
		t.Errorf("result = %s", co.Result)
	}

	res = runCLI(t, "", "call", "echo", "echo", "{not json", "--config", cfgPath)
	if res.code == 0 || !strings.Contains(res.stderr, "E501") {
		t.Errorf("invalid params: code = %d, stderr = %q, want E501", res.code, res.stderr)
	}
}

func TestTensorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.tensor")

	res := runCLI(t, "", "tensor", "encode", "--dtype", "i16", "--shape", "3", "--values", "[1,-2,3]", "-o", path)
	if res.code != 0 {
		t.Fatalf("encode exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	res = runCLI(t, "", "tensor", "inspect", path, "--values")
	if res.code != 0 {
		t.Fatalf("inspect exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	var info struct {
		DType    string   `json:"dtype"`
		Shape    []uint64 `json:"shape"`
		Elements int      `json:"elements"`
		Values   []int16  `json:"values"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &info); err != nil {
		t.Fatalf("inspect output: %v\n%s", err, res.stdout)
	}
	if info.DType != "i16" || info.Elements != 3 {
		t.Errorf("dtype = %s, elements = %d, want i16, 3", info.DType, info.Elements)
	}
	if diff := cmp.Diff([]uint64{3}, info.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int16{1, -2, 3}, info.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestTensorEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown dtype", []string{"--dtype", "f16", "--zeros"}},
		{"bad shape", []string{"--shape", "2,x", "--zeros"}},
		{"no values", []string{"--shape", "2"}},
		{"count mismatch", []string{"--shape", "3", "--values", "[1,2]"}},
		{"bad values", []string{"--dtype", "bool", "--values", "[1]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"tensor", "encode", "-o", filepath.Join(t.TempDir(), "t")}, tt.args...)
			if res := runCLI(t, "", args...); res.code == 0 {
				t.Errorf("exit code = 0, want failure")
			}
		})
	}
}

func TestCallTensorSegments(t *testing.T) {
	cfgPath := startMock(t, "")
	dir := t.TempDir()
	in := filepath.Join(dir, "in.tensor")

	if res := runCLI(t, "", "tensor", "encode", "--shape", "2,2", "--zeros", "-o", in); res.code != 0 {
		t.Fatalf("encode stderr:\n%s", res.stderr)
	}

	res := runCLI(t, "", "call", "tensor", "inspect", "--segment", in, "--transport", "ws", "--config", cfgPath)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	if co := decodeCall(t, res.stdout); compact(t, co.Result) != `["f32[2,2]"]` {
		t.Errorf("result = %s, want [\"f32[2,2]\"]", co.Result)
	}

	prefix := filepath.Join(dir, "out")
	res = runCLI(t, "", "call", "tensor", "zeros", `{"dtype":"u8","shape":[4]}`,
		"--tensors", "--save-segments", prefix, "--config", cfgPath)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}
	co := decodeCall(t, res.stdout)
	if len(co.Segments) != 1 || co.Segments[0].Tensor != "u8[4]" {
		t.Fatalf("segments = %+v, want one u8[4] tensor", co.Segments)
	}
	if _, err := os.Stat(prefix + ".0"); err != nil {
		t.Errorf("saved segment: %v", err)
	}
}

func TestCallErrors(t *testing.T) {
	cfgPath := startMock(t, "secret")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unauthorized", []string{"call", "echo", "echo"}, "E111"},
		{"unknown method", []string{"call", "nope", "nope", "--token", "secret", "--transport", "ws"}, "E301"},
		{"unknown method over http", []string{"call", "nope", "nope", "--token", "secret"}, "E110"},
		{"unknown transport", []string{"call", "echo", "echo", "--transport", "udp"}, "E501"},
		{"missing config", []string{"call", "echo", "echo", "--config", "/nonexistent/wirecall.json"}, "E401"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--json")
			if !contains(args, "--config") {
				args = append(args, "--config", cfgPath)
			}
			res := runCLI(t, "", args...)
			if res.code != 1 {
				t.Fatalf("exit code = %d, want 1", res.code)
			}
			var je struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal([]byte(res.stderr), &je); err != nil {
				t.Fatalf("stderr is not JSON: %v\n%s", err, res.stderr)
			}
			if je.Code != tt.code {
				t.Errorf("code = %s, want %s", je.Code, tt.code)
			}
		})
	}
}

func TestListen(t *testing.T) {
	cfgPath := startMock(t, "")

	res := runCLI(t, "", "listen", "clock", "--subscribe", "clock.subscribe", "--count", "2", "--config", cfgPath)
	if res.code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", res.code, res.stderr)
	}

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), res.stdout)
	}
	for i, line := range lines {
		var ev eventOutput
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if ev.Resource != "clock" || ev.Generation != 1 {
			t.Errorf("line %d: resource = %q, generation = %d", i, ev.Resource, ev.Generation)
		}
	}
}

func TestListenRequiresSubscribe(t *testing.T) {
	cfgPath := startMock(t, "")
	if res := runCLI(t, "", "listen", "--config", cfgPath); res.code == 0 {
		t.Error("listen without --subscribe should fail")
	}
}

func TestParseMode(t *testing.T) {
	httpCfg := config.New()
	httpCfg.Server.HTTP = "http://h"
	wsCfg := config.New()
	wsCfg.Server.WS = "ws://h/ws"

	tests := []struct {
		in   string
		cfg  *config.Config
		want client.Mode
	}{
		{"", httpCfg, client.ModeHTTP},
		{"", wsCfg, client.ModeWS},
		{"ws", httpCfg, client.ModeWS},
		{"ws-if-available", httpCfg, client.ModeWSIfAvailable},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.in, tt.cfg)
		if err != nil || got != tt.want {
			t.Errorf("parseMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseShape(t *testing.T) {
	got, err := parseShape("2, 3,4")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{2, 3, 4}, got); diff != "" {
		t.Errorf("parseShape mismatch (-want +got):\n%s", diff)
	}
	if got, err := parseShape(""); err != nil || got != nil {
		t.Errorf("parseShape(\"\") = %v, %v, want scalar", got, err)
	}
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "", "version", "--short")
	if strings.TrimSpace(res.stdout) != version {
		t.Errorf("version = %q, want %q", res.stdout, version)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
