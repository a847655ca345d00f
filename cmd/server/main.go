/*
main.go - Collection dashboard server entry point

PURPOSE:
  Boots the donation-collection server: loads configuration, opens the
  store (SQLite by default, in-memory for throwaway runs), wires the
  workflow service and HTTP API, and handles graceful shutdown.

USAGE:
  go run ./cmd/server
  DB_PATH=memory PORT=9090 go run ./cmd/server
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/esaar/collection-engine/api"
	"github.com/esaar/collection-engine/billing"
	memstore "github.com/esaar/collection-engine/billing/store"
	"github.com/esaar/collection-engine/collection"
	"github.com/esaar/collection-engine/config"
	"github.com/esaar/collection-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	svc := collection.NewService(store, cfg.SystemStart)
	auth := collection.Authenticator{Store: store}
	handler := api.NewHandler(svc, auth, log)
	server := api.NewServer(cfg.Addr(), handler, log)

	log.Info("starting collection engine",
		zap.String("systemStart", cfg.SystemStart.String()),
		zap.String("db", cfg.DBPath))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func openStore(cfg config.Config, log *zap.Logger) (billing.Store, func(), error) {
	if cfg.InMemory() {
		log.Info("using in-memory store")
		return memstore.NewMemory(cfg.SystemStart), func() {}, nil
	}
	s, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.EncoderConfig.TimeKey = "ts"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return c.Build()
}
