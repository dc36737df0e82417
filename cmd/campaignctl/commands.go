package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/learnloop/campaign-engine/internal/app"
	"github.com/learnloop/campaign-engine/internal/importer"
	"github.com/learnloop/campaign-engine/internal/middleware"
	"github.com/learnloop/campaign-engine/internal/repositories/mongodb"
	"github.com/learnloop/campaign-engine/internal/services"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRunCmd() *cobra.Command {
	jobs := []string{services.JobProcessNotifications, services.JobSendReminders, services.JobCreateInstances}
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one automation job now",
		Long:      "Run one automation job now and print its report. Jobs: " + strings.Join(jobs, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs,
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			report, err := rt.svcs.Jobs.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
}

func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <notification-id>",
		Short: "Move one failed notification back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid notification id %q: %w", args[0], err)
			}
			if err := rt.svcs.Notifications.Requeue(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %s requeued\n", id.Hex())
			return nil
		}),
	}
}

func newRequeueFailedCmd() *cobra.Command {
	var campaignID string
	cmd := &cobra.Command{
		Use:   "requeue-failed",
		Short: "Move failed notifications with retries left back to pending",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			return printJSON(cmd.OutOrStdout(), rt.svcs.Notifications.RequeueFailed(cmd.Context(), campaignID))
		}),
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "limit to one campaign")
	return cmd
}

func newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <campaign-id>",
		Short: "Enroll every matching user of a published campaign",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			campaign, err := rt.repos.Campaigns.FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !campaign.Metadata.IsPublished {
				return fmt.Errorf("campaign %s is not published", campaign.ID)
			}
			return printJSON(cmd.OutOrStdout(), rt.svcs.Enrollment.EnrollCampaign(cmd.Context(), campaign))
		}),
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		roles  []string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := app.NewTokenService(cfg).Issue(userID, email, roles, app.TokenTTL(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringSliceVar(&roles, "role", []string{middleware.RoleLearner}, "roles: learner, operator, admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newIndexesCmd() *cobra.Command {
	var preImages bool
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes the engine relies on",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			if err := mongodb.EnsureIndexes(cmd.Context(), rt.infra.DB); err != nil {
				return err
			}
			if preImages {
				if err := mongodb.EnablePreImages(cmd.Context(), rt.infra.DB); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ready")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&preImages, "pre-images", true, "enable change stream pre-images on campaigns (MongoDB 6.0+)")
	return cmd
}

func newImportUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-users <file.csv>",
		Short: "Create or update users from a CSV export",
		Long:  "Columns: id, email, organizationId (required); displayName, department, employeeId, cohortIds (';' separated).",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open CSV file: %w", err)
			}
			defer file.Close()

			users, rowErrs, err := importer.ParseUsers(file)
			if err != nil {
				return err
			}
			for _, rowErr := range rowErrs {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", rowErr)
			}
			result := importer.Import(cmd.Context(), rt.repos.Users, users)
			result.Skipped += len(rowErrs)
			return printJSON(cmd.OutOrStdout(), result)
		}),
	}
}
