package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
)

func newValidateConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a configuration file without running the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			fmt.Printf("configuration valid: app=%s environment=%s source=%s filter_rules=%d\n",
				cfg.App.Name, cfg.App.Environment, cfg.Source.Directory, len(cfg.FilterRules))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
