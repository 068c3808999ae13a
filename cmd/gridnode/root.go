package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sharedcode/grid"
)

func newRootCommand() *cobra.Command {
	v := newViper()
	var configFile string

	root := &cobra.Command{
		Use:           "gridnode",
		Short:         "Run a grid cache node",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			grid.ConfigureLogging()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newServeCommand(v, &configFile))
	root.AddCommand(newConfigCommand(v, &configFile))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), grid.BuildInfo())
		},
	})
	return root
}

func newConfigCommand(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			opts, err := c.nodeOptions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s\n", opts.Mode)
			fmt.Fprintf(out, "lock_ttl: %s\n", opts.LockTTL)
			fmt.Fprintf(out, "network_timeout: %s\n", opts.NetworkTimeout)
			fmt.Fprintf(out, "exchange_timeout: %s\n", opts.ExchangeTimeout)
			fmt.Fprintf(out, "deployment_enabled: %v\n", opts.DeploymentEnabled)
			fmt.Fprintf(out, "data_center_id: %d\n", opts.DataCenterID)
			fmt.Fprintf(out, "affinity_history_size: %d\n", opts.AffinityHistorySize)
			fmt.Fprintf(out, "status_address: %s\n", opts.StatusAddress)
			return nil
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
