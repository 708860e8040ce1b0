package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cardroom-server/internal/server"
)

func gracefulShutdown(appServer *server.Server, httpServer *http.Server, logger *zap.SugaredLogger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Infow("shutdown signal received")
	stop() // allow a second Ctrl+C to force

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := appServer.Shutdown(ctx); err != nil {
		logger.Warnw("error during server shutdown", "err", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnw("http server forced to shut down", "err", err)
	}

	done <- true
}

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	appServer, httpServer := server.NewServer(logger)

	done := make(chan bool, 1)
	go gracefulShutdown(appServer, httpServer, logger, done)

	logger.Infow("listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalw("http server error", "err", err)
	}

	<-done
	logger.Infow("graceful shutdown complete")
}
