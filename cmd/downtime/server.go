package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/downtime/pkg/api"
	"github.com/cuemby/downtime/pkg/config"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/manager"
	"github.com/cuemby/downtime/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the downtime controller",
	Long: `Run the controller: the schedule store, the reconciliation loop, the
gRPC API, and the HTTP server agents open their push channel on.

Configuration is read from --config (YAML) when given; flags override the
file.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	serverCmd.Flags().String("api-addr", "", "Address for the gRPC API (default :7400)")
	serverCmd.Flags().String("http-addr", "", "Address for websocket, health and metrics (default :7401)")
	serverCmd.Flags().String("socket", "", "Unix socket for a read-only gRPC API")
	serverCmd.Flags().String("data-dir", "", "Data directory for the schedule store (default ./downtime-data)")
	serverCmd.Flags().Duration("tick-interval", 0, "Reconciliation interval (default 30s)")
	serverCmd.Flags().String("timezone", "", "Time zone windows are evaluated in (default Local)")
	serverCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serverCmd.Flags().Bool("log-json", false, "Log in JSON")
}

// serverConfig loads the config file and applies flags that were set
func serverConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServer(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-addr") {
		cfg.APIAddr, _ = flags.GetString("api-addr")
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr, _ = flags.GetString("http-addr")
	}
	if flags.Changed("socket") {
		cfg.SocketPath, _ = flags.GetString("socket")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("tick-interval") {
		cfg.TickInterval, _ = flags.GetDuration("tick-interval")
	}
	if flags.Changed("timezone") {
		cfg.Timezone, _ = flags.GetString("timezone")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	return cfg, cfg.Validate()
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := serverConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, _ := cfg.Location()

	logCfg := cfg.Log.Logging()
	logCfg.Process = "controller"
	log.Init(logCfg)
	metrics.SetVersion(Version)

	mgr, err := manager.NewManager(&manager.Config{
		DataDir:      cfg.DataDir,
		TickInterval: cfg.TickInterval,
		Location:     loc,
		PushPolicy:   cfg.Push.Policy(),
		WriteTimeout: cfg.Push.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	mgr.Start(gctx)

	apiServer := api.NewServer(mgr)
	httpServer := api.NewHTTPServer(mgr)
	var socketServer *api.Server
	if cfg.SocketPath != "" {
		socketServer = api.NewReadOnlyServer(mgr)
	}

	g.Go(func() error {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			return fmt.Errorf("API server error: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Start(cfg.HTTPAddr); err != nil {
			return fmt.Errorf("HTTP server error: %v", err)
		}
		return nil
	})
	if socketServer != nil {
		g.Go(func() error {
			if err := socketServer.StartUnix(cfg.SocketPath); err != nil {
				return fmt.Errorf("socket server error: %v", err)
			}
			return nil
		})
	}

	log.Logger.Info().
		Str("version", Version).
		Str("api", cfg.APIAddr).
		Str("http", cfg.HTTPAddr).
		Str("data_dir", cfg.DataDir).
		Str("timezone", loc.String()).
		Msg("Controller running")

	// Wait for a signal or the first server error, then stop everything
	g.Go(func() error {
		<-gctx.Done()
		log.Logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Logger.Warn().Err(err).Msg("HTTP server shutdown")
		}
		apiServer.Stop()
		if socketServer != nil {
			socketServer.Stop()
			_ = os.Remove(cfg.SocketPath)
		}
		return nil
	})

	runErr := g.Wait()
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown: %v", err)
	}
	log.Logger.Info().Msg("Shutdown complete")
	return runErr
}
