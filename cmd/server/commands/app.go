package commands

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iliyamo/librov/internal/config"
	"github.com/iliyamo/librov/internal/database"
	"github.com/iliyamo/librov/internal/queue"
	"github.com/iliyamo/librov/internal/repository"
	"github.com/iliyamo/librov/internal/service"
	"github.com/iliyamo/librov/internal/validation"
)

// app is the wiring shared by every command.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	events *queue.Publisher

	accounts      *service.AccountService
	catalog       *service.CatalogService
	checkout      *service.CheckoutService
	reviews       *service.ReviewService
	requests      *service.RequestService
	notifications *service.NotificationService
}

func newApp() (*app, error) {
	cfg := config.Load()
	log := config.NewLogger(cfg.Env, os.Stdout)
	slog.SetDefault(log)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store := repository.NewStore(db)
	v := validation.New()
	events := queue.NewPublisher(cfg.AMQPURL, log)
	if !events.Enabled() {
		log.Info("AMQP_URL not set; domain events disabled")
	}
	loan := time.Duration(cfg.LoanPeriodDays) * 24 * time.Hour

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		events: events,
		accounts: service.NewAccountService(store, service.TokenSettings{
			Secret:         cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
		}, log),
		catalog:       service.NewCatalogService(store, v, log),
		checkout:      service.NewCheckoutService(store, events, log, loan),
		reviews:       service.NewReviewService(store, events, log),
		requests:      service.NewRequestService(store, v),
		notifications: service.NewNotificationService(store, events, log, cfg.NotifyBatchSize),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("close database", "err", err)
	}
}
