package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/guardchain/config"
	"github.com/jonwraymond/guardchain/observe"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "guardd",
		Short: "Guard chain demo server",
		Long: `guardd serves a small JSON API behind a configurable guard chain:
request tracing, concurrency limits, validation, authentication,
authorization, rate limiting and response caching.

Settings come from an optional YAML file, then GUARDCHAIN_* environment
variables (GUARDCHAIN_RATELIMIT__MAX=10 sets ratelimit.max).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return fmt.Errorf("failed to get env-file flag: %w", err)
			}
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before configuration")

	rootCmd.AddCommand(newServeCmd(), newCheckConfigCmd(), newVersionCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(path)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	logger := srv.tel.Logger

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	logger.Info(ctx, "guardd listening",
		observe.Field{Key: "addr", Value: cfg.Server.Addr},
		observe.Field{Key: "guards", Value: guardNames(srv.guards)},
		observe.Field{Key: "version", Value: version},
	)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown failed", observe.Field{Key: "error", Value: err.Error()})
	}
	if err := srv.close(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "cleanup failed", observe.Field{Key: "error", Value: err.Error()})
	}
	return serveErr
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and print the resulting guard order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			guards, err := config.Build(ctx, cfg, config.Deps{})
			if err != nil {
				return err
			}
			defer func() { _ = guards.Close() }()

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "configuration ok")
			for i, name := range guardNames(guards) {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func guardNames(g *config.Guards) []string {
	list := g.List()
	names := make([]string, len(list))
	for i, gd := range list {
		names[i] = gd.Name()
	}
	return names
}
