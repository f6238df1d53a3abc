package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"denuncia/backend/internal/api/handler"
	"denuncia/backend/internal/app"
	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/config"
	"denuncia/backend/internal/livefeed"
	"denuncia/backend/internal/localization"
	"denuncia/backend/internal/notify"
	"denuncia/backend/internal/storage"
	"denuncia/backend/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, cfgErr := config.FromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Warn("invalid configuration values replaced by defaults", "error", cfgErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := storage.Migrate(core.Storage.DB); err != nil {
		return err
	}

	hub := livefeed.NewHub(livefeed.WithLogger(logger), livefeed.WithMetrics(core.Metrics))
	go hub.Run(ctx)

	senders := []notify.Sender{hub}
	if cfg.TelegramBotToken != "" {
		localizer, err := localization.NewLocalizer()
		if err != nil {
			return err
		}
		bot, err := telegram.NewBotAPI(cfg.TelegramBotToken, logger)
		if err != nil {
			return err
		}
		senders = append(senders, telegram.NewSender(bot, localizer, telegram.WithLogger(logger)))
		go telegram.NewCommandListener(bot, logger).Run(ctx)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, telegram notifications disabled")
	}

	dispatcher := notify.NewDispatcher(senders,
		notify.WithLogger(logger),
		notify.WithMetrics(core.Metrics),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithTimeout(cfg.Notify.Timeout),
	)
	repo := core.Repository(complaint.WithNotifier(dispatcher))

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(repo, core.Directory, handler.NewTokens(cfg.JWTSecret, 0), hub,
		handler.WithLogger(logger),
		handler.WithHealth(core.Storage),
		handler.WithGatherer(core.Registry),
	)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// Queued notifications still get their chance once requests have drained.
	return errors.Join(err, dispatcher.Close(shutdownCtx))
}
