package services

import (
	"context"
	"time"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"golang.org/x/exp/slog"
)

var _ ReminderService = (*ReminderServiceImpl)(nil)

// ReminderPolicy is the rate limit applied per (campaign, user)
type ReminderPolicy struct {
	MaxReminders  int
	FrequencyDays int
}

// ReminderPolicyFor returns the campaign's policy with defaults filled in
func ReminderPolicyFor(automation *models.AutomationConfig) ReminderPolicy {
	return ReminderPolicy{
		MaxReminders:  automation.EffectiveMaxReminders(),
		FrequencyDays: automation.EffectiveReminderFrequencyDays(),
	}
}

// ReminderDue reports whether another reminder may be sent. Both the count
// ceiling and the minimum spacing must pass. Without a previous reminder the
// elapsed time counts as FrequencyDays+1, so the first one is always eligible.
func ReminderDue(policy ReminderPolicy, sentCount int, lastSent *time.Time, now time.Time) bool {
	if sentCount >= policy.MaxReminders {
		return false
	}
	elapsedDays := policy.FrequencyDays + 1
	if lastSent != nil {
		elapsedDays = int(now.Sub(*lastSent).Hours() / 24)
	}
	return elapsedDays >= policy.FrequencyDays
}

// ReminderServiceImpl enqueues reminders for unfinished enrollments
type ReminderServiceImpl struct {
	campaignRepo     repositories.CampaignRepository
	enrollmentRepo   repositories.EnrollmentRepository
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	notifications    NotificationService
	Clock            Clock
}

// NewReminderService creates a new ReminderServiceImpl
func NewReminderService(
	campaignRepo repositories.CampaignRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	notificationRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	notifications NotificationService,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		campaignRepo:     campaignRepo,
		enrollmentRepo:   enrollmentRepo,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		notifications:    notifications,
		Clock:            systemClock,
	}
}

// RunReminders scans every published campaign with reminders enabled
func (s *ReminderServiceImpl) RunReminders(ctx context.Context) *RunReport {
	now := s.Clock()
	report := newReport("send-reminders", now)

	campaigns, err := s.campaignRepo.FindPublishedWithReminders(ctx)
	if err != nil {
		report.fail(err, "failed to list campaigns with reminders")
		return report.finish(s.Clock())
	}

	for _, campaign := range campaigns {
		if ctx.Err() != nil {
			break
		}
		s.remindCampaign(ctx, campaign, now, report)
	}
	return report.finish(s.Clock())
}

func (s *ReminderServiceImpl) remindCampaign(ctx context.Context, campaign *models.Campaign, now time.Time, report *RunReport) {
	policy := ReminderPolicyFor(campaign.Automation)
	enrollments, err := s.enrollmentRepo.FindByCampaignAndStatuses(ctx, campaign.ID, []models.EnrollmentStatus{
		models.StatusNotStarted,
		models.StatusInProgress,
	})
	if err != nil {
		report.fail(err, "failed to list open enrollments", "campaignId", campaign.ID)
		return
	}

	for _, enrollment := range enrollments {
		report.Processed++

		history, err := s.notificationRepo.ReminderHistory(ctx, campaign.ID, enrollment.UserID)
		if err != nil {
			report.fail(err, "failed to read reminder history", "campaignId", campaign.ID, "userId", enrollment.UserID)
			continue
		}
		if !ReminderDue(policy, history.SentCount, history.LastSent, now) {
			report.Skipped++
			continue
		}
		pending, err := s.notificationRepo.HasPending(ctx, campaign.ID, enrollment.UserID, models.NotificationReminder)
		if err != nil {
			report.fail(err, "failed to check pending reminders", "campaignId", campaign.ID, "userId", enrollment.UserID)
			continue
		}
		if pending {
			report.Skipped++
			continue
		}

		user, err := s.userRepo.FindByID(ctx, enrollment.UserID)
		if err != nil {
			report.fail(err, "failed to load reminder recipient", "userId", enrollment.UserID)
			continue
		}
		_, err = s.notifications.Enqueue(ctx, NotificationRequest{
			CampaignID:     campaign.ID,
			UserID:         user.ID,
			OrganizationID: enrollment.OrganizationID,
			Type:           models.NotificationReminder,
			RecipientEmail: user.Email,
			RecipientName:  user.Name(),
		})
		if err != nil {
			report.fail(err, "failed to enqueue reminder", "campaignId", campaign.ID, "userId", user.ID)
			continue
		}
		report.Created++
		report.Succeeded++
		slog.Debug("reminder enqueued", "campaignId", campaign.ID, "userId", user.ID, "previous", history.SentCount)
	}
}
