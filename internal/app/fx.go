package app

import (
	"context"
	"errors"

	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/scheduler"
	"github.com/learnloop/campaign-engine/internal/triggers"
	"go.uber.org/fx"
	"golang.org/x/exp/slog"
)

// AutomationModule runs the cron scheduler and the change stream dispatcher.
// It expects a *config.Config to be supplied.
var AutomationModule = fx.Module("automation",
	fx.Provide(
		provideInfra,
		provideRepositories,
		provideServices,
		provideScheduler,
		provideDispatcher,
	),
	fx.Invoke(prepareDatabase, startScheduler, startDispatcher),
)

func provideInfra(lc fx.Lifecycle, cfg *config.Config) (*Infra, error) {
	infra, err := NewInfra(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: infra.Close})
	return infra, nil
}

func provideRepositories(infra *Infra) *Repositories {
	return NewRepositories(infra.DB)
}

func provideServices(cfg *config.Config, repos *Repositories, infra *Infra) (*Services, error) {
	return NewServices(cfg, repos, infra.Sender, infra.Publisher)
}

func provideScheduler(cfg *config.Config, svcs *Services) (*scheduler.Scheduler, error) {
	return NewScheduler(cfg, svcs.Jobs)
}

func provideDispatcher(infra *Infra, svcs *Services) *triggers.Dispatcher {
	return triggers.NewDispatcher(infra.DB, svcs.Enrollment, svcs.Completion)
}

// prepareDatabase runs before the scheduler and dispatcher start
func prepareDatabase(lc fx.Lifecycle, infra *Infra) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			EnsureIndexes(ctx, infra.DB)
			return nil
		},
	})
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			slog.Info("starting scheduler", "jobs", s.Entries())
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("stopping scheduler")
			return s.Stop(ctx)
		},
	})
}

// startDispatcher runs the dispatcher until the app stops. If the dispatcher
// gives up, the whole app shuts down so the process supervisor restarts it.
func startDispatcher(lc fx.Lifecycle, d *triggers.Dispatcher, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			slog.Info("starting change stream dispatcher")
			go func() {
				defer close(done)
				if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("dispatcher stopped", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
