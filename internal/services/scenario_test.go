package services

import (
	"context"
	"testing"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two modules (one question, no questions), one learner, publish to completion email.
func TestCampaignLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, NotificationOptions{},
		[]*models.User{user("u", "org-o")},
		[]*models.Video{video("v1", "q1"), video("v2")},
	)

	draft := &models.Campaign{
		ID:                   "c",
		Title:                "Security Basics",
		Items:                []models.CampaignItem{{ItemID: "m1", VideoID: "v1", Order: 1}, {ItemID: "m2", VideoID: "v2", Order: 2}},
		AllowedOrganizations: []string{"org-o"},
		Automation:           &models.AutomationConfig{SendConfirmations: true},
	}
	env.campaigns.put(draft)
	published := *draft
	published.Metadata.IsPublished = true
	env.campaigns.put(&published)

	report := env.enroller.OnCampaignWrite(ctx, draft, &published)
	assert.Equal(t, 1, report.Created)

	enrollmentID := models.EnrollmentID("c", "u")
	e := env.enrollments.get(enrollmentID)
	require.NotNil(t, e)
	assert.Equal(t, models.StatusNotStarted, e.Status)
	assert.Empty(t, e.ModuleProgress)

	require.NoError(t, env.progress.RecordVideoCompletion(ctx, VideoCompletion{CampaignID: "c", UserID: "u", ItemID: "m1", VideoID: "v1", WatchedDuration: 120, TotalDuration: 120}))
	env.completion.OnProgressWrite(ctx, "c", "u")
	m1 := env.enrollments.get(enrollmentID).Module("m1")
	assert.True(t, m1.VideoFinished)
	assert.Equal(t, 0, m1.QuestionsAnswered)
	assert.False(t, m1.Completed)

	require.NoError(t, env.progress.RecordAnswer(ctx, Answer{CampaignID: "c", UserID: "u", ItemID: "m1", VideoID: "v1", QuestionID: "q1", Value: "lock the screen"}))
	env.completion.OnProgressWrite(ctx, "c", "u")
	e = env.enrollments.get(enrollmentID)
	assert.Equal(t, 1, e.Module("m1").QuestionsAnswered)
	assert.True(t, e.Module("m1").Completed)
	assert.Equal(t, models.StatusInProgress, e.Status)

	require.NoError(t, env.progress.RecordVideoCompletion(ctx, VideoCompletion{CampaignID: "c", UserID: "u", ItemID: "m2", VideoID: "v2", WatchedDuration: 90, TotalDuration: 90}))
	m2 := env.enrollments.get(enrollmentID).Module("m2")
	assert.True(t, m2.VideoFinished)
	assert.True(t, m2.Completed)

	report = env.completion.OnProgressWrite(ctx, "c", "u")
	assert.Equal(t, 1, report.Created)
	e = env.enrollments.get(enrollmentID)
	assert.Equal(t, models.StatusCompleted, e.Status)
	require.NotNil(t, e.CompletedAt)

	stats := env.campaigns.stats("c")
	assert.Equal(t, models.CampaignStats{TotalEnrollments: 1, CompletedCount: 1}, stats)
	assert.True(t, stats.Consistent())

	queued := env.notifications.all()
	require.Len(t, queued, 1)
	assert.Equal(t, models.NotificationCompletion, queued[0].Type)
	assert.Equal(t, models.NotificationPending, queued[0].Status)

	report = env.notifier.ProcessQueue(ctx)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, models.NotificationSent, env.notifications.all()[0].Status)
	require.Len(t, env.sender.Sent(), 1)
	assert.Contains(t, env.sender.Sent()[0].Subject, "Security Basics")

	assert.Equal(t, 10+5+10, e.XPEarned)
	assert.Contains(t, env.events.Keys(), "enrollment.completed")
}
