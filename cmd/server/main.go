// Command server starts the wordflow HTTP API (see internal/app.Run for
// wiring: config load, SQLite open + migrate, service construction, REST
// routing, graceful shutdown on SIGINT/SIGTERM).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/wordflow-backend/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
