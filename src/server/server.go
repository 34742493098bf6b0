package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"copytrader/src/auth"
	"copytrader/src/handler"
	"copytrader/src/matcher"
	"copytrader/src/orchestrator"
	"copytrader/src/repository"
)

func StartServer(port string) {
	// Worker pool shared by the ingestion path; sized by orchestrator config
	executor := orchestrator.NewDefaultOrchestrator()
	dispatcher := orchestrator.NewDispatcher(executor)
	dispatcher.Start(context.Background())

	// Recovery sweep before accepting traffic: pending rows from a previous
	// crash reach a terminal state before new signals pile on.
	if err := executor.Sweep(context.Background()); err != nil {
		logger.WithError(err).Error("startup recovery sweep failed")
	}

	hub := NewHub()

	signals := repository.NewSignalRepository()
	signalMatcher := matcher.NewMatcher(repository.NewSubscriptionRepository())

	// Router with middleware
	r := chi.NewRouter()
	r.Use(auth.Middleware)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/healthcheck error")
		}
	})

	r.Post("/signals", handler.IngestSignalHandler(signals, signalMatcher, dispatcher, hub.Broadcast))
	r.Get("/signals", handler.LatestSignalsHandler(signals))
	r.Get("/signals/stream", hub.ServeWS)

	// Authenticated routes
	r.Get("/copy-trades", handler.DefaultCopyTradesHandler())

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}

	// Drain in-flight executions so no row is left between states
	dispatcher.Stop()
}
