package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/kode4food/stride"
	"github.com/kode4food/stride/internal/archive"
	"github.com/kode4food/stride/internal/config"
	"github.com/kode4food/stride/internal/persist"
	"github.com/kode4food/stride/internal/server"
	"github.com/kode4food/stride/pkg/api"
	"github.com/kode4food/stride/pkg/log"
)

type stride struct {
	cfg        *config.Config
	repo       *persist.Repository
	archiver   *archive.Archiver
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrConnectRepository = errors.New("failed to connect to repository")
	ErrOpenArchive       = errors.New("failed to open archive bucket")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &stride{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *stride) run() error {
	if err := s.initializePersistence(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *stride) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Stride starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Redis.Addr),
		slog.Int("redis_db", s.cfg.Redis.DB),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *stride) initializePersistence() error {
	s.repo = persist.NewRepository(s.cfg.Redis)

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.RequestTimeout,
	)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectRepository, err)
	}

	if s.cfg.ArchiveBucketURL != "" {
		archiver, err := archive.New(
			ctx, s.cfg.ArchiveBucketURL, s.cfg.Redis.Prefix,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpenArchive, err)
		}
		s.archiver = archiver
	}
	return nil
}

func (s *stride) startServer() {
	s.apiServer = server.NewServer(
		s.repo, api.CommercialPropertyCatalog(), s.archiver,
	)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *stride) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if s.archiver != nil {
		if err := s.archiver.Close(); err != nil {
			slog.Error("Failed to close archive", log.Error(err))
		}
	}
	if err := s.repo.Close(); err != nil {
		slog.Error("Failed to close repository", log.Error(err))
	}

	slog.Info("Shutdown complete")
}
