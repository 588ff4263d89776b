// Package config loads runtime settings from the environment.  A .env file
// in the working directory, when present, seeds variables that are not
// already set.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings every command needs.
type Config struct {
	Env            string // APP_ENV: dev, test or prod
	Port           string // APP_PORT
	DBUser         string
	DBPass         string // may be empty
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	LoanPeriodDays   int    // LOAN_PERIOD_DAYS, default 14
	NotifyBatchSize  int    // NOTIFY_BATCH_SIZE, default 500
	ReminderSchedule string // cron spec; empty disables the reminder job
	AMQPURL          string // empty disables domain events
	EventConsumer    bool   // run the activity consumer inside serve
	ActivityLogPath  string
	AutoMigrate      bool // apply migrations on serve startup
}

// Load reads the environment and exits the process when a required
// variable is missing or malformed.
func Load() Config {
	_ = godotenv.Load()
	cfg, err := load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	return cfg
}

func load() (Config, error) {
	var r reader
	cfg := Config{
		Env:            r.must("APP_ENV"),
		Port:           r.must("APP_PORT"),
		DBUser:         r.must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         r.must("DB_HOST"),
		DBPort:         r.must("DB_PORT"),
		DBName:         r.must("DB_NAME"),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: r.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     r.mustInt("BCRYPT_COST"),

		LoanPeriodDays:   envInt("LOAN_PERIOD_DAYS", 14),
		NotifyBatchSize:  envInt("NOTIFY_BATCH_SIZE", 500),
		ReminderSchedule: envStrAllowEmpty("REMINDER_SCHEDULE", "0 8 * * *"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		EventConsumer:    envBool("EVENT_CONSUMER", false),
		ActivityLogPath:  envStr("ACTIVITY_LOG_PATH", "logs/activity.log"),
		AutoMigrate:      envBool("AUTO_MIGRATE", true),
	}
	if len(r.missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid int env vars: %s", strings.Join(r.invalid, ", "))
	}
	if cfg.LoanPeriodDays < 1 {
		return Config{}, fmt.Errorf("LOAN_PERIOD_DAYS must be positive, got %d", cfg.LoanPeriodDays)
	}
	if cfg.NotifyBatchSize < 1 {
		return Config{}, fmt.Errorf("NOTIFY_BATCH_SIZE must be positive, got %d", cfg.NotifyBatchSize)
	}
	return cfg, nil
}

// DevMode reports whether APP_ENV selects the developer setup.
func (c Config) DevMode() bool { return strings.EqualFold(c.Env, "dev") }

// reader collects every missing or malformed required variable so one
// run reports them all.
type reader struct {
	missing []string
	invalid []string
}

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.invalid = append(r.invalid, key)
	}
	return n
}
