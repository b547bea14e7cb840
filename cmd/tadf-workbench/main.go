// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the tadf-workbench CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zouly-group/tadf-workbench/internal/config"
	"github.com/zouly-group/tadf-workbench/internal/secrets"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded once per invocation, before any subcommand runs.
var cfg types.Config

// rootCmd is the base command for the tadf-workbench CLI.
var rootCmd = &cobra.Command{
	Use:   "tadf-workbench",
	Short: "Build curated TADF materials datasets from scientific papers",
	Long: `tadf-workbench extracts photophysical and device measurements of TADF
emitters from papers, aligns each paper's compound labels with a shared
compound registry, grades every record against validation rules, and
exports ML-ready datasets.

Papers are processed with "process"; the registry and stores are queried
with "compound" and "stats"; datasets are written with "export".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			names := s.Names()
			sort.Strings(names)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", names)
		}

		c, err := config.Load(viper.GetViper(), s)
		if err != nil {
			return err
		}
		cfg = c
		slog.SetDefault(newLogger(cfg.Log))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./tadf-workbench.yaml or ~/.config/tadf-workbench/tadf-workbench.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of API key files")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the database (overrides store.data_dir)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	viper.BindPFlag("store.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	used, err := config.Setup(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// newLogger builds the diagnostics logger. Progress lines go to stdout;
// logs go to stderr.
func newLogger(lc types.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(lc.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
