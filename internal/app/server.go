package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intrnl "github.com/ashishexplains17/websockets/internal"
	"github.com/ashishexplains17/websockets/internal/storage"
	"github.com/ashishexplains17/websockets/internal/storesvc"
)

// Handle represents a running server instance.
type Handle struct {
	addr    string
	server  *http.Server
	done    chan struct{}
	err     error
	cleanup func()
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *Handle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *Handle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *Handle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer assembles the hub (verifier, registry, relay, routes) and starts
// serving in the background. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig, log *zap.Logger) (*Handle, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.StoreURL == "" {
		return nil, errors.New("store service url is required")
	}
	cfg.WSPath = NormalizeWSPath(cfg.WSPath)
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = 5
	}
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = 3 * time.Second
	}

	metrics := intrnl.NewMetrics()
	hub := intrnl.NewHub(log, metrics, cfg.TypingTTL)
	stopSweeper := hub.StartTypingSweeper()
	verifier := intrnl.NewJWTVerifier(cfg.JWTSecret)
	store := intrnl.NewStoreClient(cfg.StoreURL, cfg.StoreTimeout)
	relay := intrnl.NewRelay(hub, store, log)
	limiter := intrnl.NewRateLimiter(cfg.MessageLimit, cfg.MessageWindow)
	server := intrnl.NewServer(hub, relay, verifier, limiter, metrics, log, cfg.AllowedOrigins)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(intrnl.RequestLogger(log), gin.Recovery(), intrnl.OriginGuard(cfg.AllowedOrigins))
	server.Register(router, cfg.WSPath)

	return serve(ctx, cfg.Addr, router, log, stopSweeper)
}

// RunStoreServer opens the SQLite store, runs migrations, and starts the
// reference persistence service in the background.
func RunStoreServer(ctx context.Context, cfg StoreConfig, log *zap.Logger) (*Handle, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}

	service := storesvc.New(store, cfg.JWTSecret, cfg.TokenTTL, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(intrnl.RequestLogger(log), gin.Recovery())
	service.Register(router)

	return serve(ctx, cfg.Addr, router, log, func() {
		if err := store.Close(); err != nil {
			log.Warn("store close error", zap.Error(err))
		}
	})
}

// serve starts the HTTP server on its own goroutine and arranges shutdown
// when ctx is cancelled. Shared by the hub and the store service.
func serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger, cleanup func()) (*Handle, error) {
	httpServer := &http.Server{Addr: addr, Handler: handler}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	handle := &Handle{
		addr:    listener.Addr().String(),
		server:  httpServer,
		done:    make(chan struct{}),
		cleanup: cleanup,
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("shutdown error", zap.Error(err))
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *Handle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if h.cleanup != nil {
		h.cleanup()
	}
	h.err = err
}
