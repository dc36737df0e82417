package services

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/pkg/events"
	"github.com/learnloop/campaign-engine/pkg/mailer"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// DefaultBatchSize is the number of pending notifications one queue run drains
const DefaultBatchSize = 100

var _ NotificationService = (*NotificationServiceImpl)(nil)

// NotificationOptions tunes the queue processor
type NotificationOptions struct {
	BatchSize int
	// AutoRetry moves failed notifications back to pending once their backoff
	// has elapsed. Off means failed is terminal until an operator requeues.
	AutoRetry      bool
	MaxRetries     int
	RetryBaseDelay time.Duration
	AppBaseURL     string
}

// NotificationRequest describes a notification to enqueue
type NotificationRequest struct {
	CampaignID     string
	UserID         string
	OrganizationID string
	Type           models.NotificationType
	RecipientEmail string
	RecipientName  string
	// ScheduledFor defaults to now
	ScheduledFor time.Time
}

// NotificationServiceImpl owns the notification queue
type NotificationServiceImpl struct {
	notificationRepo repositories.NotificationRepository
	campaignRepo     repositories.CampaignRepository
	sender           mailer.Sender
	publisher        events.Publisher
	opts             NotificationOptions
	Clock            Clock
}

// NewNotificationService creates a new NotificationServiceImpl
func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	campaignRepo repositories.CampaignRepository,
	sender mailer.Sender,
	publisher events.Publisher,
	opts NotificationOptions,
) *NotificationServiceImpl {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 5 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationServiceImpl{
		notificationRepo: notificationRepo,
		campaignRepo:     campaignRepo,
		sender:           sender,
		publisher:        publisher,
		opts:             opts,
		Clock:            systemClock,
	}
}

// Enqueue creates a pending notification
func (s *NotificationServiceImpl) Enqueue(ctx context.Context, req NotificationRequest) (*models.Notification, error) {
	if req.RecipientEmail == "" {
		return nil, fmt.Errorf("notification for user %s has no recipient email", req.UserID)
	}
	scheduled := req.ScheduledFor
	if scheduled.IsZero() {
		scheduled = s.Clock()
	}
	n := &models.Notification{
		CampaignID:     req.CampaignID,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		Status:         models.NotificationPending,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		ScheduledFor:   scheduled,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s notification: %w", req.Type, err)
	}
	return n, nil
}

// ProcessQueue drains up to BatchSize due pending notifications. Each item is
// handled on its own; a failure marks that item failed and the run continues.
func (s *NotificationServiceImpl) ProcessQueue(ctx context.Context) *RunReport {
	now := s.Clock()
	report := newReport("process-notifications", now)

	if s.opts.AutoRetry {
		s.requeueDue(ctx, now, report)
	}

	pending, err := s.notificationRepo.FindPending(ctx, now, s.opts.BatchSize)
	if err != nil {
		report.fail(err, "failed to fetch pending notifications")
		return report.finish(s.Clock())
	}

	campaigns := make(map[string]*models.Campaign)
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		report.Processed++
		if err := s.deliver(ctx, n, campaigns); err != nil {
			s.markFailed(ctx, n, err, report)
			continue
		}
		ok, err := s.notificationRepo.MarkSent(ctx, n.ID, s.Clock())
		if err != nil {
			report.fail(err, "failed to mark notification sent", "notificationId", n.ID.Hex())
			continue
		}
		if !ok {
			// another processor already moved it out of pending
			report.Skipped++
			continue
		}
		report.Succeeded++
	}
	return report.finish(s.Clock())
}

// deliver resolves the campaign, renders and sends the email
func (s *NotificationServiceImpl) deliver(ctx context.Context, n *models.Notification, campaigns map[string]*models.Campaign) error {
	campaign, ok := campaigns[n.CampaignID]
	if !ok {
		var err error
		campaign, err = s.campaignRepo.FindByID(ctx, n.CampaignID)
		if err != nil {
			return err
		}
		campaigns[n.CampaignID] = campaign
	}

	msg, err := renderEmail(n, campaign, s.opts.AppBaseURL)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

func (s *NotificationServiceImpl) markFailed(ctx context.Context, n *models.Notification, cause error, report *RunReport) {
	report.fail(cause, "failed to send notification",
		"notificationId", n.ID.Hex(),
		"campaignId", n.CampaignID,
		"type", n.Type,
	)
	if _, err := s.notificationRepo.MarkFailed(ctx, n.ID, cause.Error(), s.Clock()); err != nil {
		slog.Error("failed to mark notification failed", "notificationId", n.ID.Hex(), "error", err)
		return
	}
	payload := map[string]interface{}{
		"notificationId": n.ID.Hex(),
		"campaignId":     n.CampaignID,
		"userId":         n.UserID,
		"type":           n.Type,
		"retryCount":     n.RetryCount + 1,
		"reason":         cause.Error(),
	}
	if err := s.publisher.Publish(ctx, events.NotificationFailed, payload); err != nil {
		slog.Warn("failed to publish notification event", "notificationId", n.ID.Hex(), "error", err)
	}
}

// requeueDue moves failed notifications whose backoff elapsed back to pending
func (s *NotificationServiceImpl) requeueDue(ctx context.Context, now time.Time, report *RunReport) {
	failed, err := s.notificationRepo.FindRetryable(ctx, "", s.opts.MaxRetries, s.opts.BatchSize)
	if err != nil {
		report.fail(err, "failed to fetch retryable notifications")
		return
	}
	for _, n := range failed {
		if now.Before(n.UpdatedAt.Add(RetryBackoff(s.opts.RetryBaseDelay, n.RetryCount))) {
			continue
		}
		if _, err := s.notificationRepo.MarkPending(ctx, n.ID, now); err != nil {
			slog.Error("failed to requeue notification", "notificationId", n.ID.Hex(), "error", err)
		}
	}
}

// RetryBackoff returns base doubled for every retry already used
func RetryBackoff(base time.Duration, retryCount int) time.Duration {
	if retryCount <= 1 {
		return base
	}
	if retryCount > 16 {
		retryCount = 16
	}
	return base << uint(retryCount-1)
}

// Requeue moves one failed notification back to pending
func (s *NotificationServiceImpl) Requeue(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.notificationRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != models.NotificationFailed {
		return fmt.Errorf("notification %s is %s: %w", id.Hex(), n.Status, apperrors.ErrNotRequeueable)
	}
	if s.opts.MaxRetries > 0 && n.RetryCount >= s.opts.MaxRetries {
		return fmt.Errorf("notification %s used %d of %d retries: %w", id.Hex(), n.RetryCount, s.opts.MaxRetries, apperrors.ErrNotRequeueable)
	}
	ok, err := s.notificationRepo.MarkPending(ctx, id, s.Clock())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notification %s changed state: %w", id.Hex(), apperrors.ErrNotRequeueable)
	}
	slog.Info("notification requeued", "notificationId", id.Hex(), "retryCount", n.RetryCount)
	return nil
}

// RequeueFailed moves up to BatchSize failed notifications with retries left back to pending
func (s *NotificationServiceImpl) RequeueFailed(ctx context.Context, campaignID string) *RunReport {
	report := newReport("requeue-failed", s.Clock())

	maxRetries := s.opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = int(^uint(0) >> 1)
	}
	failed, err := s.notificationRepo.FindRetryable(ctx, campaignID, maxRetries, s.opts.BatchSize)
	if err != nil {
		report.fail(err, "failed to fetch failed notifications", "campaignId", campaignID)
		return report.finish(s.Clock())
	}
	for _, n := range failed {
		report.Processed++
		ok, err := s.notificationRepo.MarkPending(ctx, n.ID, s.Clock())
		switch {
		case err != nil:
			report.fail(err, "failed to requeue notification", "notificationId", n.ID.Hex())
		case !ok:
			report.Skipped++
		default:
			report.Succeeded++
		}
	}
	return report.finish(s.Clock())
}
