package repositories

import (
	"context"
	"time"

	"github.com/learnloop/campaign-engine/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignRepository defines the campaign operations the automation core needs
type CampaignRepository interface {
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
	// FindPublishedWithReminders returns published campaigns with automation.sendReminders set
	FindPublishedWithReminders(ctx context.Context) ([]*models.Campaign, error)
	// FindPublishedRecurring returns published campaigns whose schedule is not "once"
	FindPublishedRecurring(ctx context.Context) ([]*models.Campaign, error)
	// UpdateStats overwrites the stats sub-document
	UpdateStats(ctx context.Context, id string, stats models.CampaignStats) error
}

// VideoProgress carries the watch metrics written when a video finishes
type VideoProgress struct {
	QuestionTarget  int
	WatchedDuration float64
	TotalDuration   float64
}

// EnrollmentRepository defines enrollment and module progress operations
type EnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	// CreateIfAbsent inserts the enrollment unless its deterministic key already exists
	CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	FindByCampaignAndStatuses(ctx context.Context, campaignID string, statuses []models.EnrollmentStatus) ([]*models.Enrollment, error)
	CountByStatus(ctx context.Context, campaignID string) (map[models.EnrollmentStatus]int, error)
	// MarkVideoFinished sets videoFinished and watch metrics; firstTime is true when the flag was not set before
	MarkVideoFinished(ctx context.Context, id, itemID string, progress VideoProgress) (firstTime bool, err error)
	// IncrementQuestionsAnswered atomically counts questionID once per module,
	// unless the module already reached target
	IncrementQuestionsAnswered(ctx context.Context, id, itemID, questionID string, target int) (bool, error)
	// RefreshModuleCompletion sets the stored completed flag when its inputs allow it
	RefreshModuleCompletion(ctx context.Context, id, itemID string) error
	// TransitionStatus moves status from one value to another only if it still holds from
	TransitionStatus(ctx context.Context, id string, from, to models.EnrollmentStatus, at time.Time) (bool, error)
	RecordAccess(ctx context.Context, id string, at time.Time) error
	AddXP(ctx context.Context, id string, xp int) error
}

// ResponseRepository defines question response operations
type ResponseRepository interface {
	// CreateIfAbsent stores the response unless one exists for the same key
	CreateIfAbsent(ctx context.Context, response *models.Response) (bool, error)
}

// ReminderHistory summarises the sent reminders for one (campaign, user) pair
type ReminderHistory struct {
	SentCount int
	LastSent  *time.Time
}

// NotificationRepository defines notification queue operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	// FindPending returns up to limit pending notifications due at or before now
	FindPending(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error)
	// FindRetryable returns failed notifications with retryCount below maxRetries; campaignID "" matches all
	FindRetryable(ctx context.Context, campaignID string, maxRetries, limit int) ([]*models.Notification, error)
	// MarkSent and MarkFailed only move a notification out of pending
	MarkSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error)
	// MarkPending only moves a failed notification back to pending
	MarkPending(ctx context.Context, id primitive.ObjectID, scheduledFor time.Time) (bool, error)
	ReminderHistory(ctx context.Context, campaignID, userID string) (ReminderHistory, error)
	HasPending(ctx context.Context, campaignID, userID string, notificationType models.NotificationType) (bool, error)
}

// UserRepository defines user lookups
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByOrganization(ctx context.Context, organizationID string) ([]*models.User, error)
}

// VideoRepository defines video lookups
type VideoRepository interface {
	FindByID(ctx context.Context, id string) (*models.Video, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.Video, error)
}

// InstanceRepository defines campaign instance operations
type InstanceRepository interface {
	// LastInstanceNumber returns the highest instanceNumber for a parent, 0 when none exist
	LastInstanceNumber(ctx context.Context, parentCampaignID string) (int, error)
	Create(ctx context.Context, instance *models.CampaignInstance) error
}
