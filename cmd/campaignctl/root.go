package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/learnloop/campaign-engine/internal/app"
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

// runtime is the connected state shared by commands that touch the database
type runtime struct {
	cfg   *config.Config
	infra *app.Infra
	repos *app.Repositories
	svcs  *app.Services
}

func (r *runtime) close() {
	if err := r.infra.Close(context.Background()); err != nil {
		slog.Warn("error closing connections", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log)
	return cfg, nil
}

func connect(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	infra, err := app.NewInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repos := app.NewRepositories(infra.DB)
	svcs, err := app.NewServices(cfg, repos, infra.Sender, infra.Publisher)
	if err != nil {
		_ = infra.Close(context.Background())
		return nil, err
	}
	return &runtime{cfg: cfg, infra: infra, repos: repos, svcs: svcs}, nil
}

// withRuntime adapts a command body that needs a database connection
func withRuntime(fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, args, rt)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "campaignctl",
		Short:        "Operate the campaign automation engine",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRunCmd(),
		newRequeueCmd(),
		newRequeueFailedCmd(),
		newEnrollCmd(),
		newTokenCmd(),
		newIndexesCmd(),
		newImportUsersCmd(),
	)
	return root
}
