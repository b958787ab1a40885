package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-dm/internal/app"
	"github.com/vovakirdan/wirechat-dm/internal/config"
	applog "github.com/vovakirdan/wirechat-dm/internal/log"
)

type flags struct {
	configPath  string
	addr        string
	logLevel    string
	storeDriver string
	dbPath      string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "wirechat-dm",
		Short:         "Presence-aware direct messaging server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to config.yaml (default: ./config.yaml)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.storeDriver, "store-driver", "", "message store driver (sqlite or badger)")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "sqlite file or badger directory")

	return cmd
}

func run(ctx context.Context, f flags) error {
	bootLog := applog.New("info", "console")

	cfg, path, err := config.Load(bootLog, f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		Addr:         f.addr,
		LogLevel:     f.logLevel,
		StoreDriver:  f.storeDriver,
		DatabasePath: f.dbPath,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config_path", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat-dm server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
