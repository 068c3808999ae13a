package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sharedcode/grid"
	"github.com/sharedcode/grid/internal/status"
	"github.com/sharedcode/grid/metrics"
	"github.com/sharedcode/grid/node"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the node and serve its status API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			level, err := parseLevel(c.LogLevel)
			if err != nil {
				return err
			}
			grid.SetLogLevel(level)
			opts, err := c.nodeOptions()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, c.Caches)
		},
	}
	cmd.Flags().String("mode", "", "coordination mode: standalone or clustered")
	cmd.Flags().String("status-address", "", "listen address of the status API")
	cmd.Flags().StringSlice("caches", nil, "caches to start with the node")
	_ = v.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	_ = v.BindPFlag("status_address", cmd.Flags().Lookup("status-address"))
	_ = v.BindPFlag("caches", cmd.Flags().Lookup("caches"))
	return cmd
}

// serve runs a node until ctx is done.
func serve(ctx context.Context, opts grid.NodeOptions, caches []string) error {
	n, err := node.New(opts)
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	log := grid.Logger()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := n.Stop(sctx, false); err != nil {
			log.Error("node stop failed", "error", err)
		}
	}()

	for _, name := range caches {
		if _, err := n.StartCache(ctx, node.CacheConfig{Name: name}); err != nil {
			return err
		}
	}

	if err := prometheus.DefaultRegisterer.Register(metrics.NewCollector(n.Shared())); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}

	if opts.StatusAddress != "" {
		router, err := status.NewRouter(n.Shared(), prometheus.DefaultGatherer)
		if err != nil {
			return err
		}
		srv, err := status.Listen(opts.StatusAddress, router)
		if err != nil {
			return err
		}
		log.Info("status API listening", "address", srv.Addr())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("status API shutdown failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down", "node", n.Shared().NodeID())
	return nil
}
