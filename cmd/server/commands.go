package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarcosLauremiro/miKan-api/internal/app"
	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mikan",
		Short:         "miKan project management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration directory or YAML file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(configPath)
		},
	})

	return root
}

// prepareConfig loads, completes and validates configuration, then installs
// the global logger.
func prepareConfig(configPath string) (*app.Config, error) {
	var paths []string
	if p := strings.TrimSpace(configPath); p != "" {
		paths = append(paths, p)
	}

	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return nil, err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Warn("generated runtime secret; sessions will not survive a restart", zap.String("key", key))
	}
	return cfg, nil
}

func runMigrate(configPath string) error {
	cfg, err := prepareConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.WithModule("bootstrap")
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	log.Info("migrations applied")
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := prepareConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.WithModule("bootstrap")

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stack.Shutdown(context.Background(), log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
