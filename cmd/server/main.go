package main

import (
	"context"
	"net/http"
	"os"

	webAdapter "backbar/internal/adapters/web"
	"backbar/internal/core"
	"backbar/internal/db"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic("logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	svc := webAdapter.Services{
		Products:        core.NewProductService(pool),
		Sales:           core.NewSaleService(pool),
		Closes:          core.NewDailyCloseService(pool),
		Conversions:     core.NewConversionService(pool),
		Purchases:       core.NewPurchaseService(pool),
		Debts:           core.NewDebtService(pool),
		Cash:            core.NewCashService(pool),
		Reconciliations: core.NewReconciliationService(pool),
		Reports:         core.NewReportingService(pool),
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, logger, allowedOrigins)

	logger.Info("server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
