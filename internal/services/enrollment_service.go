package services

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/pkg/events"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

var _ EnrollmentService = (*EnrollmentServiceImpl)(nil)

// EnrollmentServiceImpl enrolls a campaign's audience when it is published
type EnrollmentServiceImpl struct {
	enrollmentRepo repositories.EnrollmentRepository
	userRepo       repositories.UserRepository
	notifications  NotificationService
	stats          StatsService
	publisher      events.Publisher
	Clock          Clock
}

// NewEnrollmentService creates a new EnrollmentServiceImpl
func NewEnrollmentService(
	enrollmentRepo repositories.EnrollmentRepository,
	userRepo repositories.UserRepository,
	notifications NotificationService,
	stats StatsService,
	publisher events.Publisher,
) *EnrollmentServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &EnrollmentServiceImpl{
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		notifications:  notifications,
		stats:          stats,
		publisher:      publisher,
		Clock:          systemClock,
	}
}

// PublishedTransition reports whether a write moved a campaign from unpublished to published
func PublishedTransition(before, after *models.Campaign) bool {
	if after == nil || !after.Metadata.IsPublished {
		return false
	}
	return before == nil || !before.Metadata.IsPublished
}

// OnCampaignWrite runs enrollment only for the false to true publish transition
func (s *EnrollmentServiceImpl) OnCampaignWrite(ctx context.Context, before, after *models.Campaign) *RunReport {
	if !PublishedTransition(before, after) {
		report := newReport("auto-enroll", s.Clock())
		report.Skipped++
		return report
	}
	return s.EnrollCampaign(ctx, after)
}

// EnrollCampaign creates a not-started enrollment for every matching member of
// the campaign's primary organization. Existing enrollments are left as they are.
func (s *EnrollmentServiceImpl) EnrollCampaign(ctx context.Context, campaign *models.Campaign) *RunReport {
	report := newReport("auto-enroll", s.Clock())

	organizationID := campaign.PrimaryOrganization()
	if organizationID == "" {
		slog.Warn("campaign has no allowed organization, nothing to enroll", "campaignId", campaign.ID)
		return report.finish(s.Clock())
	}

	users, err := s.userRepo.FindByOrganization(ctx, organizationID)
	if err != nil {
		report.fail(err, "failed to list organization users", "campaignId", campaign.ID, "organizationId", organizationID)
		return report.finish(s.Clock())
	}

	sendInvites := campaign.Automation != nil && campaign.Automation.AutoSendInvites
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		if !MatchesFilters(campaign, user) {
			continue
		}
		report.Processed++

		now := s.Clock()
		created, err := s.enrollmentRepo.CreateIfAbsent(ctx, &models.Enrollment{
			ID:             models.EnrollmentID(campaign.ID, user.ID),
			CampaignID:     campaign.ID,
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Status:         models.StatusNotStarted,
			Source:         models.SourceAutoEnroll,
			EnrolledAt:     now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			report.fail(err, "failed to create enrollment", "campaignId", campaign.ID, "userId", user.ID)
			continue
		}
		if !created {
			report.Skipped++
			continue
		}
		report.Created++
		report.Succeeded++

		if sendInvites {
			_, err := s.notifications.Enqueue(ctx, NotificationRequest{
				CampaignID:     campaign.ID,
				UserID:         user.ID,
				OrganizationID: user.OrganizationID,
				Type:           models.NotificationInvitation,
				RecipientEmail: user.Email,
				RecipientName:  user.Name(),
			})
			if err != nil {
				slog.Error("failed to enqueue invitation", "campaignId", campaign.ID, "userId", user.ID, "error", err)
			}
		}
	}

	stats, err := s.stats.Recompute(ctx, campaign.ID)
	if err != nil {
		report.fail(err, "failed to recompute campaign stats", "campaignId", campaign.ID)
	}

	if report.Created > 0 {
		payload := map[string]interface{}{
			"campaignId":       campaign.ID,
			"enrolled":         report.Created,
			"totalEnrollments": stats.TotalEnrollments,
		}
		if err := s.publisher.Publish(ctx, events.CampaignEnrolled, payload); err != nil {
			slog.Warn("failed to publish enrollment event", "campaignId", campaign.ID, "error", err)
		}
	}
	return report.finish(s.Clock())
}

// MatchesFilters reports whether user is in the campaign audience. With no
// granular filters every organization member matches; otherwise matching any
// one of department, employee id or cohort is enough.
func MatchesFilters(campaign *models.Campaign, user *models.User) bool {
	if !campaign.HasGranularFilters() {
		return true
	}
	if user.Department != "" && slices.Contains(campaign.AllowedDepartments, user.Department) {
		return true
	}
	if user.EmployeeID != "" && slices.Contains(campaign.AllowedEmployeeIDs, user.EmployeeID) {
		return true
	}
	for _, cohortID := range user.CohortIDs {
		if slices.Contains(campaign.AllowedCohortIDs, cohortID) {
			return true
		}
	}
	return false
}
