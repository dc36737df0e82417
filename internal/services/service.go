package services

import (
	"context"
	"time"

	"github.com/learnloop/campaign-engine/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clock returns the current time. Services take one so scheduled jobs can be tested deterministically.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// PlayerService defines the learner-facing read path
type PlayerService interface {
	// Load builds the slide sequence and resume position for a learner
	Load(ctx context.Context, campaignID, userID string) (*PlayerView, error)
}

// ProgressService defines the learner progress write paths
type ProgressService interface {
	// RecordAccess ensures an enrollment exists and counts the visit
	RecordAccess(ctx context.Context, campaignID, userID string) (*models.Enrollment, error)
	// RecordVideoCompletion marks a module video finished; repeat calls are no-ops
	RecordVideoCompletion(ctx context.Context, event VideoCompletion) error
	// RecordAnswer stores a response and counts it towards the module
	RecordAnswer(ctx context.Context, answer Answer) error
}

// CompletionService defines the reaction to progress writes
type CompletionService interface {
	OnProgressWrite(ctx context.Context, campaignID, userID string) *RunReport
}

// EnrollmentService defines auto-enrollment
type EnrollmentService interface {
	// OnCampaignWrite enrolls the audience when a campaign moves to published
	OnCampaignWrite(ctx context.Context, before, after *models.Campaign) *RunReport
	// EnrollCampaign enrolls every matching user who is not enrolled yet
	EnrollCampaign(ctx context.Context, campaign *models.Campaign) *RunReport
}

// StatsService defines the campaign aggregate owner
type StatsService interface {
	// Recompute derives stats from enrollment counts and overwrites the stored value
	Recompute(ctx context.Context, campaignID string) (models.CampaignStats, error)
}

// NotificationService defines the notification queue operations
type NotificationService interface {
	Enqueue(ctx context.Context, req NotificationRequest) (*models.Notification, error)
	// ProcessQueue sends one batch of due pending notifications
	ProcessQueue(ctx context.Context) *RunReport
	// Requeue moves one failed notification back to pending
	Requeue(ctx context.Context, id primitive.ObjectID) error
	// RequeueFailed moves a batch of failed notifications back to pending; campaignID "" means all campaigns
	RequeueFailed(ctx context.Context, campaignID string) *RunReport
}

// ReminderService defines the reminder scan
type ReminderService interface {
	RunReminders(ctx context.Context) *RunReport
}

// RecurringService defines the recurring instance job
type RecurringService interface {
	RunInstancer(ctx context.Context) *RunReport
}
