package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/malbeclabs/aquabot/internal/config"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"github.com/malbeclabs/aquabot/internal/server"
	"github.com/spf13/cobra"
)

type ServeCmd struct {
	info BuildInfo
}

func NewServeCmd(info BuildInfo) *ServeCmd {
	return &ServeCmd{info: info}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat page and the ask endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			metrics.BuildInfo.WithLabelValues(c.info.Version, c.info.Commit, c.info.Date).Set(1)

			srvCfg := &server.Config{
				Logger:          log,
				CORSOrigins:     cfg.Server.CORSOrigins,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				ChartURLPrefix:  cfg.Chart.URLPrefix,
			}
			if cfg.Chart.Sink == config.SinkLocal {
				srvCfg.ChartDir = cfg.Chart.Dir
			}

			s, err := loadStore(ctx, log, cfg)
			if err != nil {
				log.Error("Could not load one or more data files; every question will get the unavailable answer", "error", err)
			} else {
				r, err := newRouter(ctx, log, cfg, s)
				if err != nil {
					return err
				}
				srvCfg.Answerer = r
			}

			srvCfg.Listener, err = net.Listen("tcp", cfg.Server.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddr, err)
			}
			if cfg.Server.MetricsAddr != "" {
				srvCfg.MetricsListener, err = net.Listen("tcp", cfg.Server.MetricsAddr)
				if err != nil {
					_ = srvCfg.Listener.Close()
					return fmt.Errorf("failed to listen on %s: %w", cfg.Server.MetricsAddr, err)
				}
			}

			srv, err := server.New(srvCfg)
			if err != nil {
				return err
			}
			return run(ctx, srv)
		},
	}

	cmd.Flags().String("listen", config.DefaultListenAddr, "address the HTTP server listens on")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "address the Prometheus metrics server listens on (empty disables)")
	addDataFlags(cmd.Flags())
	addChartFlags(cmd.Flags())

	return cmd
}

func run(ctx context.Context, srv *server.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err, ok := <-srv.Start(ctx, cancel); ok && err != nil {
		return err
	}
	return nil
}
