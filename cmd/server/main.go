package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invest/internal/config"
	"invest/internal/db"
	"invest/internal/handlers"
	"invest/internal/scheduler"
	"invest/internal/services"
	"invest/internal/store"
	"invest/internal/websocket"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	users := store.NewUserStore(database)
	plans := store.NewPlanStore(database)
	investments := store.NewInvestmentStore(database)
	transactions := store.NewTransactionStore(database)
	withdrawals := store.NewWithdrawalStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	accrual := services.NewAccrualService(txRunner, users, investments, transactions, hub, cfg.ProfitHour)
	invest := services.NewInvestmentService(txRunner, users, plans, investments, transactions, audit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopScheduler := scheduler.New(accrual, cfg.CatchupInterval, cfg.LocalProfitInterval).Start(ctx)
	defer stopScheduler()

	handler := handlers.New(txRunner, cfg, users, plans, investments, transactions, withdrawals, admin, audit, accrual, invest, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("investment API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
}
