package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	g := &globals{stdin: stdin, stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(g)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(g, err)
		return 1
	}
	return 0
}

func newRootCmd(g *globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wirecall",
		Short: "Call remote methods over HTTP or a shared WebSocket",
		Long: `wirecall is a client for platforms speaking the segmented binary
call protocol.

Calls are sent as one HTTP request or multiplexed over a shared
WebSocket connection that also carries server-pushed events.
Tensors travel as binary segments in a self-describing format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noColor {
				errors.DisableColors()
			}
			logger, err := newLogger(g.stderr, g.logLevel)
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Path to wirecall.json (default: search upward from the working directory)")
	flags.StringVar(&g.httpBase, "http", "", "HTTP base URL (overrides server.http)")
	flags.StringVar(&g.wsURL, "ws", "", "WebSocket URL (overrides server.ws)")
	flags.StringVar(&g.token, "token", "", "Bearer token (overrides auth.token)")
	flags.StringArrayVarP(&g.headers, "header", "H", nil, "Extra header as Key: Value (repeatable)")
	flags.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&g.jsonErrors, "json", false, "Print errors as JSON")
	flags.BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		initCmd(g),
		callCmd(g),
		listenCmd(g),
		tensorCmd(g),
		serveMockCmd(g),
		versionCmd(),
	)
	return rootCmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("E501").
			WithDetail("Unknown log level " + level).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func printError(g *globals, err error) {
	e := errors.Classify(err)
	if g.jsonErrors {
		fmt.Fprintln(g.stderr, e.FormatJSON())
		return
	}
	errors.Fprint(g.stderr, e)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitHeader parses "Key: Value".
func splitHeader(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, ":")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", "", errors.New("E501").
			WithDetail("Header " + s + " is not of the form Key: Value")
	}
	return k, strings.TrimSpace(v), nil
}
