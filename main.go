package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/config"
	"github.com/nijaru/yt-chat/handlers"
	"github.com/nijaru/yt-chat/knowledge"
	"github.com/nijaru/yt-chat/logger"
	"github.com/nijaru/yt-chat/metadata"
	"github.com/nijaru/yt-chat/middleware"
	"github.com/nijaru/yt-chat/session"
	"github.com/nijaru/yt-chat/transcription"
	"github.com/nijaru/yt-chat/video"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}

	if _, err := logger.New(cfg); err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logrus.WithError(err).Fatal("Failed to create data directory")
	}

	mdProvider, err := metadata.NewProvider(cfg.Video.MetadataProvider, metadata.Options{
		YTDLPPath:   cfg.Video.YTDLPPath,
		HTTPTimeout: cfg.Video.HTTPTimeout,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create metadata provider")
	}

	transcripts := transcription.NewYouTubeProvider(
		&http.Client{Timeout: cfg.Video.HTTPTimeout},
		cfg.Video.TranscriptLangs,
	)
	fetcher := video.NewFetcher(mdProvider, transcripts)

	kbFactory := session.KnowledgeSessions(cfg.DataDir, knowledge.ConfigFrom(cfg.Knowledge), knowledge.NewEngine)
	sessions := session.NewManager(fetcher, kbFactory, cfg.SessionTTL)

	h := handlers.New(sessions)
	handler := middleware.Chain(
		h.Routes(),
		middleware.RequestID,
		middleware.Recovery,
		middleware.LoggingMiddleware,
		middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitInterval),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	logrus.WithField("port", cfg.ServerPort).Info("Listening")
	err = serve(server, stop, cfg.ShutdownTimeout)
	sessions.CloseAll()
	if err != nil {
		logrus.WithError(err).Errorf("Could not listen on :%s", cfg.ServerPort)
		os.Exit(1)
	}
}

// serve runs server until a signal arrives on stop or the listener fails,
// then shuts it down within timeout. A listener error is returned.
func serve(server *http.Server, stop <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var listenErr error
	select {
	case <-stop:
	case listenErr = <-serverErr:
	}

	logrus.Info("Shutting down the server...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown")
	}
	return listenErr
}
