// Package app builds the repositories, services and infrastructure shared by
// the api, automation and campaignctl binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/repositories/mongodb"
	"github.com/learnloop/campaign-engine/internal/services"
	"github.com/learnloop/campaign-engine/pkg/events"
	"github.com/learnloop/campaign-engine/pkg/jwt"
	"github.com/learnloop/campaign-engine/pkg/mailer"
	mongoclient "github.com/learnloop/campaign-engine/pkg/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/exp/slog"
)

// Infra holds the external connections
type Infra struct {
	Mongo     *mongoclient.Client
	DB        *mongo.Database
	Sender    mailer.Sender
	Publisher events.Publisher
}

// NewInfra connects to MongoDB and the broker and creates the mail sender
func NewInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	client, err := mongoclient.NewClient(ctx, cfg.MongoDB.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	sender, err := mailer.New(mailer.Options{
		Provider:     cfg.Email.Provider,
		From:         cfg.Email.From,
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUsername: cfg.Email.SMTPUsername,
		SMTPPassword: cfg.Email.SMTPPassword,
		ResendAPIKey: cfg.Email.ResendAPIKey,
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	publisher, err := events.New(cfg.Events.URL, cfg.Events.Exchange)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to event broker: %w", err)
	}

	slog.Info("infrastructure ready", "database", cfg.MongoDB.Database, "emailProvider", cfg.Email.Provider, "eventsEnabled", cfg.Events.URL != "")
	return &Infra{
		Mongo:     client,
		DB:        client.Database(cfg.MongoDB.Database),
		Sender:    sender,
		Publisher: publisher,
	}, nil
}

// Close releases the broker channel and the MongoDB connection
func (i *Infra) Close(ctx context.Context) error {
	return errors.Join(i.Publisher.Close(), i.Mongo.Disconnect(ctx))
}

// Repositories holds the MongoDB repositories
type Repositories struct {
	Campaigns     *mongodb.CampaignRepository
	Enrollments   *mongodb.EnrollmentRepository
	Notifications *mongodb.NotificationRepository
	Responses     *mongodb.ResponseRepository
	Users         *mongodb.UserRepository
	Videos        *mongodb.VideoRepository
	Instances     *mongodb.InstanceRepository
}

// ensureIndexes is swapped in tests
var ensureIndexes = mongodb.EnsureIndexes

// EnsureIndexes creates the indexes the repositories depend on. A failure is
// logged and startup goes on with whatever indexes already exist.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := ensureIndexes(ctx, db); err != nil {
		slog.Error("failed to ensure indexes", "error", err)
		return
	}
	slog.Info("indexes ready")
}

// NewRepositories creates every repository on db
func NewRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Campaigns:     mongodb.NewCampaignRepository(db),
		Enrollments:   mongodb.NewEnrollmentRepository(db),
		Notifications: mongodb.NewNotificationRepository(db),
		Responses:     mongodb.NewResponseRepository(db),
		Users:         mongodb.NewUserRepository(db),
		Videos:        mongodb.NewVideoRepository(db),
		Instances:     mongodb.NewInstanceRepository(db),
	}
}

// Services holds the domain services
type Services struct {
	Stats         *services.StatsServiceImpl
	Notifications *services.NotificationServiceImpl
	Enrollment    *services.EnrollmentServiceImpl
	Completion    *services.CompletionServiceImpl
	Progress      *services.ProgressServiceImpl
	Player        *services.PlayerServiceImpl
	Reminders     *services.ReminderServiceImpl
	Recurring     *services.RecurringServiceImpl
	Jobs          *services.Jobs
}

// NewServices wires the services from configuration
func NewServices(cfg *config.Config, repos *Repositories, sender mailer.Sender, publisher events.Publisher) (*Services, error) {
	retryBase, err := time.ParseDuration(cfg.Automation.RetryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid retry base delay %q: %w", cfg.Automation.RetryBaseDelay, err)
	}

	stats := services.NewStatsService(repos.Campaigns, repos.Enrollments)
	notifications := services.NewNotificationService(repos.Notifications, repos.Campaigns, sender, publisher, services.NotificationOptions{
		BatchSize:      cfg.Automation.BatchSize,
		AutoRetry:      cfg.Automation.AutoRetry,
		MaxRetries:     cfg.Automation.MaxRetries,
		RetryBaseDelay: retryBase,
		AppBaseURL:     cfg.Automation.AppBaseURL,
	})
	reminders := services.NewReminderService(repos.Campaigns, repos.Enrollments, repos.Notifications, repos.Users, notifications)
	recurring := services.NewRecurringService(repos.Campaigns, repos.Instances, publisher, cfg.Automation.MaxCatchUp)

	return &Services{
		Stats:         stats,
		Notifications: notifications,
		Enrollment:    services.NewEnrollmentService(repos.Enrollments, repos.Users, notifications, stats, publisher),
		Completion:    services.NewCompletionService(repos.Campaigns, repos.Enrollments, repos.Users, notifications, stats, publisher),
		Progress: services.NewProgressService(repos.Campaigns, repos.Enrollments, repos.Responses, repos.Videos, repos.Users, stats, services.XPRewards{
			PerVideo:  cfg.Automation.XPPerVideo,
			PerAnswer: cfg.Automation.XPPerAnswer,
		}),
		Player:    services.NewPlayerService(repos.Campaigns, repos.Videos, repos.Enrollments),
		Reminders: reminders,
		Recurring: recurring,
		Jobs:      services.NewJobs(notifications, reminders, recurring),
	}, nil
}

// NewTokenService creates the token service from the JWT settings
func NewTokenService(cfg *config.Config) *jwt.TokenService {
	return jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
}

// TokenTTL returns the lifetime of issued tokens
func TokenTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.JWT.TTLHours) * time.Hour
}
