package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/app"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/config"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/routes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hr-assistant: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting hr-assistant",
		zap.String("environment", cfg.Environment),
		zap.String("model", cfg.Model.DefaultModel),
		zap.String("ollama", cfg.Model.BaseURL))

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	return serve(ctx, cfg, logger, newServers(deps))
}

// newServers builds the API server and, when metrics use a dedicated port, the metrics server
func newServers(deps *app.Dependencies) []*http.Server {
	cfg := deps.Config
	servers := []*http.Server{{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}

	if cfg.Observability.MetricsEnabled && cfg.Observability.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", routes.MetricsHandler(deps))
		servers = append(servers, &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Observability.MetricsPort)),
			Handler: mux,
		})
	}
	return servers
}

// serve runs every server until ctx is done or one of them fails, then shuts all of them down
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, servers []*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			var err error
			if cfg.Server.TLS.Enabled && srv == servers[0] {
				err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down servers", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var err error
		for _, srv := range servers {
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				err = multierr.Append(err, fmt.Errorf("shutdown %s: %w", srv.Addr, shutdownErr))
			}
		}
		return err
	})

	return g.Wait()
}
