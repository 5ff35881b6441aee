package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/ecomsagas/fulfillment/internal/inventoryservice"
	"github.com/ecomsagas/fulfillment/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()

	addr := getEnv("HTTP_ADDR", ":8081")

	svc := inventoryservice.NewService(map[string]int{
		"prod_1": 15,
		"prod_2": 10,
		"prod_3": 0,
	}, slog.Default())

	slog.Info("inventory service running", "addr", addr)

	if err := http.ListenAndServe(addr, inventoryservice.NewRouter(svc)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
