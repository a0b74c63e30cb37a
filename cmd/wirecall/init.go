package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wirecall/internal/config"
	"github.com/vango-dev/wirecall/internal/errors"
)

func initCmd(g *globals) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a wirecall.json with default settings",
		Long: `Write a wirecall.json in the given directory. The --http, --ws and
--token flags are stored in the file.

Examples:
  wirecall init --http https://platform.example.com/api --ws wss://platform.example.com/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(g, dir, force)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write the file in")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func runInit(g *globals, dir string, force bool) error {
	path := filepath.Join(dir, config.ConfigFileName)
	if config.Exists(dir) && !force {
		return errors.New("E403").
			WithDetail(path + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New("E503").Wrap(err)
	}

	cfg := config.New()
	cfg.Server.HTTP = g.httpBase
	cfg.Server.WS = g.wsURL
	cfg.Auth.Token = g.token
	for _, h := range g.headers {
		k, v, err := splitHeader(h)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[k] = v
	}
	if cfg.Server.HTTP != "" || cfg.Server.WS != "" {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout, "Wrote %s\n", path)
	return nil
}
