package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/pflag"
	"github.com/vendedor360/backend/config"
	"github.com/vendedor360/backend/internal/bootstrap"
	httpDelivery "github.com/vendedor360/backend/internal/delivery/http"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Environment)
	log.Info("starting vendedor360 backend",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"catalog", cfg.Catalog.Path,
		"submission_log", cfg.SubmissionLog.Type,
		"ledger", cfg.Cache.Type,
	)

	app, err := bootstrap.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err.Error())
		os.Exit(1)
	}

	handler := httpDelivery.NewHandler(app.Loader, cfg.Catalog.Path, app.Matcher, app.Proposals, app.Dispatcher)
	router := httpDelivery.SetupRouter(cfg, handler, app.Metrics, log)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Info("graceful shutdown initiated")
				return server.Shutdown(ctx)
			},
			"bidding-resources": func(ctx context.Context) error {
				return app.Close()
			},
		},
	)

	exitCode := <-wait
	log.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}
