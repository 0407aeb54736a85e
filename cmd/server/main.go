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
	addr := flag.String("addr", app.Getenv("RELAY_ADDR", ":8080"), "server listen address")
	wsPath := flag.String("ws-path", app.Getenv("RELAY_WS_PATH", "/ws"), "websocket path")
	origins := flag.String("origins", app.Getenv("RELAY_ORIGINS", ""), "comma separated allowed origins (empty allows all)")
	secret := flag.String("jwt-secret", os.Getenv("RELAY_JWT_SECRET"), "credential verification secret")
	storeURL := flag.String("store-url", app.Getenv("RELAY_STORE_URL", "http://localhost:8081"), "persistence service base url")
	storeTimeout := flag.Duration("store-timeout", 5*time.Second, "persistence call timeout")
	typingTTL := flag.Duration("typing-ttl", 10*time.Second, "typing state liveness timeout (0 disables the sweeper)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := app.ServerConfig{
		Addr:           *addr,
		WSPath:         *wsPath,
		AllowedOrigins: app.ParseOrigins(*origins),
		JWTSecret:      *secret,
		StoreURL:       *storeURL,
		StoreTimeout:   *storeTimeout,
		TypingTTL:      *typingTTL,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg, log)
	if err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
	log.Info("relay hub listening", zap.String("addr", handle.Addr()), zap.String("ws_path", cfg.WSPath))

	if err := handle.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
