package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/librov/internal/config"
	"github.com/iliyamo/librov/internal/database"
	"github.com/iliyamo/librov/internal/handler"
	"github.com/iliyamo/librov/internal/jobs"
	"github.com/iliyamo/librov/internal/middleware"
	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/router"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the reminder job and the optional activity consumer",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	if a.cfg.AutoMigrate {
		if err := database.Migrate(ctx, a.db, log); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	router.Register(e, router.Deps{
		JWTSecret:     a.cfg.JWTSecret,
		DB:            a.db,
		Cache:         cache,
		RateLimit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Auth:          handler.NewAuthHandler(a.accounts),
		Books:         handler.NewBookHandler(a.catalog),
		Transactions:  handler.NewTransactionHandler(a.checkout),
		Reviews:       handler.NewReviewHandler(a.reviews),
		Requests:      handler.NewRequestHandler(a.requests),
		Notifications: handler.NewNotificationHandler(a.notifications),
		Profile:       handler.NewProfileHandler(a.accounts),
	})

	var sched *jobs.Scheduler
	if spec := a.cfg.ReminderSchedule; spec != "" {
		sched, err = jobs.NewScheduler(ctx, spec, a.notifications, log)
		if err != nil {
			return err
		}
		sched.Start()
	}

	if a.cfg.EventConsumer && a.events.Enabled() {
		consumer := &queue.ActivityConsumer{URL: a.cfg.AMQPURL, LogPath: a.cfg.ActivityLogPath, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("activity consumer stopped", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		log.Info("listening", "addr", addr, "env", a.cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	return nil
}
