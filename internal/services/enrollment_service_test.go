package services

import (
	"context"
	"testing"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesFilters(t *testing.T) {
	all := &models.Campaign{
		AllowedDepartments: []string{"sales"},
		AllowedEmployeeIDs: []string{"E-1"},
		AllowedCohortIDs:   []string{"2024-q1"},
	}

	tests := []struct {
		name     string
		campaign *models.Campaign
		user     *models.User
		want     bool
	}{
		{"no filters matches everyone", &models.Campaign{}, &models.User{ID: "u"}, true},
		{"department only", all, &models.User{Department: "sales", EmployeeID: "E-9", CohortIDs: []string{"other"}}, true},
		{"employee id only", all, &models.User{Department: "ops", EmployeeID: "E-1"}, true},
		{"cohort intersection", all, &models.User{CohortIDs: []string{"x", "2024-q1"}}, true},
		{"nothing matches", all, &models.User{Department: "ops", EmployeeID: "E-2", CohortIDs: []string{"x"}}, false},
		{"empty user attributes", all, &models.User{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesFilters(tt.campaign, tt.user))
		})
	}
}

func TestPublishedTransition(t *testing.T) {
	draft := &models.Campaign{}
	live := &models.Campaign{Metadata: models.CampaignMetadata{IsPublished: true}}

	assert.True(t, PublishedTransition(draft, live))
	assert.True(t, PublishedTransition(nil, live))
	assert.False(t, PublishedTransition(live, live))
	assert.False(t, PublishedTransition(live, draft))
	assert.False(t, PublishedTransition(draft, nil))
}

func publishedCampaign(id string, automation *models.AutomationConfig) *models.Campaign {
	return &models.Campaign{
		ID:                   id,
		Title:                "Campaign " + id,
		Items:                []models.CampaignItem{{ItemID: "m1", VideoID: "v1", Order: 1}},
		AllowedOrganizations: []string{"org"},
		Automation:           automation,
		Metadata:             models.CampaignMetadata{IsPublished: true},
	}
}

func TestEnrollCampaignCreatesEnrollmentsAndInvites(t *testing.T) {
	ctx := context.Background()
	sales := user("u1", "org")
	sales.Department = "sales"
	ops := user("u2", "org")
	ops.Department = "ops"
	outsider := user("u3", "other-org")
	outsider.Department = "sales"

	env := newTestEnv(t, NotificationOptions{}, []*models.User{sales, ops, outsider}, nil)
	campaign := publishedCampaign("c1", &models.AutomationConfig{AutoSendInvites: true})
	campaign.AllowedDepartments = []string{"sales"}
	env.campaigns.put(campaign)

	report := env.enroller.EnrollCampaign(ctx, campaign)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Failed)

	require.NotNil(t, env.enrollments.get(models.EnrollmentID("c1", "u1")))
	assert.Nil(t, env.enrollments.get(models.EnrollmentID("c1", "u2")))
	assert.Nil(t, env.enrollments.get(models.EnrollmentID("c1", "u3")))

	invites := env.notifications.all()
	require.Len(t, invites, 1)
	assert.Equal(t, models.NotificationInvitation, invites[0].Type)
	assert.Equal(t, "u1@example.com", invites[0].RecipientEmail)

	assert.Equal(t, models.CampaignStats{TotalEnrollments: 1, NotStartedCount: 1}, env.campaigns.stats("c1"))
	assert.Equal(t, []string{"campaign.enrolled"}, env.events.Keys())
}

func TestEnrollCampaignIsIdempotentAndKeepsProgressStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, NotificationOptions{},
		[]*models.User{user("u1", "org"), user("u2", "org")},
		[]*models.Video{video("v1")},
	)
	campaign := publishedCampaign("c1", &models.AutomationConfig{AutoSendInvites: true})
	env.campaigns.put(campaign)

	env.enroller.EnrollCampaign(ctx, campaign)
	require.NoError(t, env.progress.RecordVideoCompletion(ctx, VideoCompletion{CampaignID: "c1", UserID: "u1", ItemID: "m1", VideoID: "v1"}))

	report := env.enroller.EnrollCampaign(ctx, campaign)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, env.notifications.all(), 2)

	stats := env.campaigns.stats("c1")
	assert.Equal(t, models.CampaignStats{TotalEnrollments: 2, NotStartedCount: 1, InProgressCount: 1}, stats)
}

func TestOnCampaignWriteIgnoresNonPublishWrites(t *testing.T) {
	env := newTestEnv(t, NotificationOptions{}, []*models.User{user("u1", "org")}, nil)
	campaign := publishedCampaign("c1", nil)
	env.campaigns.put(campaign)

	report := env.enroller.OnCampaignWrite(context.Background(), campaign, campaign)
	assert.Equal(t, 1, report.Skipped)
	assert.Nil(t, env.enrollments.get(models.EnrollmentID("c1", "u1")))
}

func TestEnrollCampaignWithoutOrganizationDoesNothing(t *testing.T) {
	env := newTestEnv(t, NotificationOptions{}, []*models.User{user("u1", "org")}, nil)
	campaign := publishedCampaign("c1", nil)
	campaign.AllowedOrganizations = nil

	report := env.enroller.EnrollCampaign(context.Background(), campaign)
	assert.Zero(t, report.Processed)
	assert.Zero(t, report.Failed)
}
