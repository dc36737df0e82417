package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/api/routes"
	"github.com/learnloop/campaign-engine/internal/app"
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/handlers"
	"github.com/learnloop/campaign-engine/internal/logger"
	"github.com/learnloop/campaign-engine/internal/middleware"
	"github.com/learnloop/campaign-engine/internal/triggers"
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
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	infra, err := app.NewInfra(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise infrastructure", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := infra.Close(context.Background()); err != nil {
			slog.Error("error closing infrastructure", "error", err)
		}
	}()

	app.EnsureIndexes(ctx, infra.DB)

	repos := app.NewRepositories(infra.DB)
	svcs, err := app.NewServices(cfg, repos, infra.Sender, infra.Publisher)
	if err != nil {
		slog.Error("failed to initialise services", "error", err)
		os.Exit(1)
	}

	enforcer, err := middleware.NewEnforcer()
	if err != nil {
		slog.Error("failed to initialise rbac", "error", err)
		os.Exit(1)
	}

	handlerDeps := routes.HandlerDependencies{
		PlayerHandler: handlers.NewPlayerHandler(svcs.Player, svcs.Progress, triggers.NewEnrollmentFeed(infra.DB)),
		AdminHandler:  handlers.NewAdminHandler(svcs.Jobs, svcs.Notifications, svcs.Stats, svcs.Enrollment, repos.Campaigns),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"mongodb": infra.Mongo.Ping,
		}),
	}
	router := routes.SetupRouter(cfg, handlerDeps, app.NewTokenService(cfg), enforcer)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server starting", "port", cfg.Server.Port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exiting")
}
