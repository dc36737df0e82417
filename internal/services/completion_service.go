package services

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/pkg/events"
	"golang.org/x/exp/slog"
)

var _ CompletionService = (*CompletionServiceImpl)(nil)

// CompletionServiceImpl decides whole-campaign completion after progress writes
type CompletionServiceImpl struct {
	campaignRepo   repositories.CampaignRepository
	enrollmentRepo repositories.EnrollmentRepository
	userRepo       repositories.UserRepository
	notifications  NotificationService
	stats          StatsService
	publisher      events.Publisher
	Clock          Clock
}

// NewCompletionService creates a new CompletionServiceImpl
func NewCompletionService(
	campaignRepo repositories.CampaignRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	userRepo repositories.UserRepository,
	notifications NotificationService,
	stats StatsService,
	publisher events.Publisher,
) *CompletionServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CompletionServiceImpl{
		campaignRepo:   campaignRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		notifications:  notifications,
		stats:          stats,
		publisher:      publisher,
		Clock:          systemClock,
	}
}

// OnProgressWrite re-reads the enrollment of (campaignID, userID) and moves it
// to completed once every module is complete. Completed is terminal; later
// writes leave it untouched. Each step logs its own failure and later steps
// still run where they can.
func (s *CompletionServiceImpl) OnProgressWrite(ctx context.Context, campaignID, userID string) *RunReport {
	report := newReport("completion", s.Clock())
	report.Processed++

	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		report.fail(err, "failed to load campaign", "campaignId", campaignID, "userId", userID)
		return report.finish(s.Clock())
	}
	items := campaign.SortedItems()
	if len(items) == 0 {
		slog.Warn("campaign has no items, skipping completion check", "campaignId", campaignID)
		report.Skipped++
		return report.finish(s.Clock())
	}

	enrollmentID := models.EnrollmentID(campaignID, userID)
	enrollment, err := s.enrollmentRepo.FindByID(ctx, enrollmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			report.Skipped++
		} else {
			report.fail(err, "failed to load enrollment", "enrollmentId", enrollmentID)
		}
		return report.finish(s.Clock())
	}

	if enrollment.Status == models.StatusCompleted {
		report.Skipped++
		return report.finish(s.Clock())
	}

	completed := enrollment.CountCompletedModules(items)
	next := models.StatusInProgress
	if completed >= len(items) {
		next = models.StatusCompleted
	} else if enrollment.Status == models.StatusInProgress || !enrollment.HasProgress() {
		report.Skipped++
		return report.finish(s.Clock())
	}

	if !enrollment.Status.CanTransition(next) {
		report.Skipped++
		return report.finish(s.Clock())
	}
	moved, err := s.enrollmentRepo.TransitionStatus(ctx, enrollmentID, enrollment.Status, next, s.Clock())
	if err != nil {
		report.fail(err, "failed to update enrollment status", "enrollmentId", enrollmentID, "status", next)
		return report.finish(s.Clock())
	}
	if !moved {
		// a concurrent trigger got there first
		report.Skipped++
		return report.finish(s.Clock())
	}
	report.Succeeded++

	if _, err := s.stats.Recompute(ctx, campaignID); err != nil {
		report.fail(err, "failed to recompute campaign stats", "campaignId", campaignID)
	}

	if next != models.StatusCompleted {
		return report.finish(s.Clock())
	}

	slog.Info("enrollment completed",
		"campaignId", campaignID,
		"userId", userID,
		"modules", len(items),
	)
	payload := map[string]interface{}{
		"campaignId": campaignID,
		"userId":     userID,
		"xpEarned":   enrollment.XPEarned,
	}
	if err := s.publisher.Publish(ctx, events.EnrollmentCompleted, payload); err != nil {
		slog.Warn("failed to publish completion event", "enrollmentId", enrollmentID, "error", err)
	}

	if campaign.Automation == nil || !campaign.Automation.SendConfirmations {
		return report.finish(s.Clock())
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		report.fail(err, "failed to load user for completion email", "userId", userID)
		return report.finish(s.Clock())
	}
	_, err = s.notifications.Enqueue(ctx, NotificationRequest{
		CampaignID:     campaignID,
		UserID:         userID,
		OrganizationID: enrollment.OrganizationID,
		Type:           models.NotificationCompletion,
		RecipientEmail: user.Email,
		RecipientName:  user.Name(),
	})
	if err != nil {
		report.fail(err, "failed to enqueue completion notification", "userId", userID)
		return report.finish(s.Clock())
	}
	report.Created++
	return report.finish(s.Clock())
}
