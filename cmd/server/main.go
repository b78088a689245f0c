package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/config"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scriptbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags override environment values
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	scripts := flag.String("scripts", cfg.Store.Dir, "Installed script directory")
	watch := flag.Bool("watch", cfg.Store.Watch, "Reload the active plugin when its script changes")
	seed := flag.String("seed", "", "Install every .js script under this directory at startup")
	load := flag.String("load", "", "Installed script id to load at startup")
	level := flag.String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Store.Dir = *scripts
	cfg.Store.Watch = *watch
	cfg.Logging.Level = *level
	cfg.Logging.Development = *dev
	if *dev {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prepare(ctx, srv, logger, *seed, *load); err != nil {
		return err
	}
	return srv.Run(ctx)
}

// prepare seeds the store and loads the startup plugin
func prepare(ctx context.Context, srv *server.Server, logger *logging.Logger, seedDir, pluginID string) error {
	st := srv.Store()
	if st == nil {
		if seedDir != "" || pluginID != "" {
			return fmt.Errorf("-seed and -load need a script directory")
		}
		return nil
	}

	if seedDir != "" {
		result, err := st.Seed(ctx, seedDir)
		if err != nil {
			return fmt.Errorf("seed scripts: %w", err)
		}
		logger.Info("Seeded scripts",
			zap.Int("installed", result.Installed),
			zap.Int("unchanged", result.Unchanged),
			zap.Int("failed", result.Failed),
		)
	}

	if pluginID != "" {
		d, _, err := st.Get(ctx, pluginID)
		if err != nil {
			return fmt.Errorf("load %s: %w", pluginID, err)
		}
		info, err := srv.Supervisor().Load(ctx, d)
		if err != nil {
			return err
		}
		logger.Info("Loaded plugin", zap.String("plugin_id", info.ID), zap.String("version", info.Version))
	}
	return nil
}
