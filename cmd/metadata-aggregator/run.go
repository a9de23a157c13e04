package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/driver"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/logging"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/hotreload"
)

func newRunCmd() *cobra.Command {
	var configFile string
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load, prune, filter, sign, and serialize metadata once, or continuously with --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregator(cmd.Context(), configFile, watch)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload configuration and re-run on every config file change (needs --config and hot_reload.enabled)")
	return cmd
}

func runAggregator(ctx context.Context, configFile string, watch bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.App)

	agg, err := driver.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build aggregator: %w", err)
	}

	if srv := agg.AdminServer(); srv != nil {
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.WithError(err).Error("admin server exited")
			}
		}()
	}

	runOnce := func() {
		out, err := agg.Run(ctx, cfg.Source.Directory)
		if err != nil {
			logger.WithError(err).Error("run failed")
			return
		}
		logger.WithFields(logrus.Fields{"item_count": len(out)}).Info("run completed")
	}
	runOnce()

	if !watch || !cfg.HotReload.Enabled || configFile == "" {
		return agg.Shutdown(ctx)
	}

	watcher, err := hotreload.New(configFile, hotreload.Options{}, func(newCfg *config.PipelineConfig) {
		logger.Info("configuration changed, rebuilding aggregator")
		newAgg, err := driver.New(ctx, newCfg, logging.New(newCfg.App))
		if err != nil {
			logger.WithError(err).Error("rebuild aggregator after reload")
			return
		}
		_ = agg.Shutdown(ctx)
		agg = newAgg
		cfg = newCfg
		runOnce()
	}, func(err error) {
		logger.WithError(err).Error("config reload failed, keeping previous configuration")
	})
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return agg.Shutdown(ctx)
}
