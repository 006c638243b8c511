package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"appwini/internal/config"
	"appwini/internal/db"
	"appwini/internal/logging"
	"appwini/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := logging.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			logger.Fatal("JWT_SECRET is required outside dev")
		}
		cfg.JWTSecret = "dev-only-secret"
		logger.Warn("JWT_SECRET not set, using development secret")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	if cfg.SeedData {
		n, err := db.Seed(ctx, conn)
		if err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
		if n > 0 {
			logger.Info("seeded catalog", zap.Int("products", n))
		}
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(cfg, conn, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	logger.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("dialect", string(conn.Dialect)),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}

	<-idleConnsClosed
	logger.Info("server stopped")
}
