package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ashishexplains17/websockets/internal/app"
)

func main() {
	addr := flag.String("addr", app.Getenv("STORE_ADDR", ":8081"), "store service listen address")
	dbPath := flag.String("db", app.Getenv("STORE_DB_PATH", "relayhub.db"), "sqlite database path")
	secret := flag.String("jwt-secret", os.Getenv("RELAY_JWT_SECRET"), "credential signing secret (must match the hub)")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "issued credential lifetime")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := app.StoreConfig{
		Addr:      *addr,
		DBPath:    *dbPath,
		JWTSecret: *secret,
		TokenTTL:  *tokenTTL,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunStoreServer(ctx, cfg, log)
	if err != nil {
		log.Fatal("store service start failed", zap.Error(err))
	}
	log.Info("store service listening", zap.String("addr", handle.Addr()))

	if err := handle.Wait(); err != nil {
		log.Fatal("store service error", zap.Error(err))
	}
}
