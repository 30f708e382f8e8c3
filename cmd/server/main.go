package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotelops/backend/internal/api"
	"github.com/hotelops/backend/internal/config"
	"github.com/hotelops/backend/internal/domain/assignments"
	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/domain/ledger"
	"github.com/hotelops/backend/internal/domain/reports"
	"github.com/hotelops/backend/internal/infra/db"
	"github.com/hotelops/backend/internal/infra/httpx"
	"github.com/hotelops/backend/internal/infra/logger"
	"github.com/hotelops/backend/internal/infra/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	itemsRepo := items.NewRepo(pool)
	engine := ledger.NewEngine(pool, log)
	assignLedger := assignments.New(pool, engine)
	reportsRepo := reports.NewRepo(pool, itemsRepo)

	var alerter *notify.Alerter
	if cfg.Alerts.TelegramToken != "" {
		alerter, err = notify.NewAlerter(cfg.Alerts.TelegramToken, cfg.Alerts.AdminChatID, log)
		if err != nil {
			log.Warn("telegram alerter disabled", "err", err)
			alerter = nil
		}
	}

	router := httpx.NewRouter(cfg.App.Env, cfg.Metrics.Enabled)
	api.New(log, itemsRepo, engine, assignLedger, reportsRepo, alerter).Register(router)

	srv := httpx.New(cfg.HTTP.Addr, router)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
