package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joho/godotenv"
)

func main() {
	// .env необязателен, в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	app := mustBootstrapClaimAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("claim-api stopped", "error", err.Error())
		panic(err)
	}
}
