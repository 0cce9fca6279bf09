package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goaltracker/internal/config"
	"goaltracker/internal/slogutil"
	"goaltracker/internal/stubapi"
)

func main() {
	configFile := flag.String("config", "", "config file (default ./goaltracker.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slogutil.SetupDefault(cfg.Log)

	if cfg.Server.JWTSecret == config.DefaultConfig().Server.JWTSecret {
		logger.Warn("using the default JWT secret, set JWT_SECRET outside local development")
	}

	handler := stubapi.NewHandler(stubapi.NewStore(), stubapi.Options{
		Secret:         []byte(cfg.Server.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Latency:        cfg.Server.Latency,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("API server is running", "addr", cfg.Server.Addr, "latency", cfg.Server.Latency)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	logger.Info("API server stopped")
}
