package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/mkravets/fleetsync/internal/client/app"
	"github.com/mkravets/fleetsync/internal/client/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	a.Run(ctx)
}
