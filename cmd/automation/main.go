package main

import (
	"os"

	"github.com/learnloop/campaign-engine/internal/app"
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/logger"
	"go.uber.org/fx"
	"golang.org/x/exp/slog"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Log)

	fx.New(
		fx.Supply(cfg),
		fx.NopLogger,
		app.AutomationModule,
	).Run()
}
