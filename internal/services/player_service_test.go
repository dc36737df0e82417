package services

import (
	"context"
	"testing"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlayerEnv(t *testing.T) *testEnv {
	env := newTestEnv(t, NotificationOptions{}, []*models.User{user("u1", "org")},
		[]*models.Video{video("v1", "q1", "q2"), video("v2")})
	campaign := publishedCampaign("c1", nil)
	campaign.Items = []models.CampaignItem{{ItemID: "m2", VideoID: "v2", Order: 2}, {ItemID: "m1", VideoID: "v1", Order: 1}}
	env.campaigns.put(campaign)
	return env
}

func TestLoadForNewLearner(t *testing.T) {
	env := newPlayerEnv(t)

	view, err := env.player.Load(context.Background(), "c1", "u1")
	require.NoError(t, err)
	require.Len(t, view.Slides, 4)
	assert.Equal(t, player.SlideVideo, view.Slides[0].Type)
	assert.Equal(t, "m1", view.Slides[0].ItemID)
	assert.Equal(t, "q2", view.Slides[2].QuestionID)
	assert.Equal(t, "m2", view.Slides[3].ItemID)
	assert.Equal(t, 0, view.ResumeIndex)
	assert.False(t, view.Completed)
	assert.Equal(t, models.StatusNotStarted, view.Status)
	require.Len(t, view.Modules, 2)
	assert.False(t, view.Modules[0].Locked)
	assert.True(t, view.Modules[1].Locked)
}

func TestLoadResumesAfterAnsweredQuestions(t *testing.T) {
	ctx := context.Background()
	env := newPlayerEnv(t)
	require.NoError(t, env.progress.RecordVideoCompletion(ctx, VideoCompletion{CampaignID: "c1", UserID: "u1", ItemID: "m1", VideoID: "v1"}))
	require.NoError(t, env.progress.RecordAnswer(ctx, Answer{CampaignID: "c1", UserID: "u1", ItemID: "m1", VideoID: "v1", QuestionID: "q1"}))

	view, err := env.player.Load(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.ResumeIndex)
	assert.Equal(t, models.StatusInProgress, view.Status)
	assert.Equal(t, 15, view.XPEarned)

	require.NoError(t, env.progress.RecordAnswer(ctx, Answer{CampaignID: "c1", UserID: "u1", ItemID: "m1", VideoID: "v1", QuestionID: "q2"}))
	view, err = env.player.Load(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, view.ResumeIndex)
	assert.False(t, view.Modules[1].Locked)

	require.NoError(t, env.progress.RecordVideoCompletion(ctx, VideoCompletion{CampaignID: "c1", UserID: "u1", ItemID: "m2", VideoID: "v2"}))
	view, err = env.player.Load(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.True(t, view.Completed)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	env := newPlayerEnv(t)
	empty := publishedCampaign("empty", nil)
	empty.Items = nil
	env.campaigns.put(empty)
	broken := publishedCampaign("broken", nil)
	broken.Items = []models.CampaignItem{{ItemID: "m1", VideoID: "deleted"}}
	env.campaigns.put(broken)

	_, err := env.player.Load(ctx, "empty", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNoItems)

	_, err = env.player.Load(ctx, "broken", "u1")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = env.player.Load(ctx, "missing", "u1")
	assert.True(t, apperrors.IsNotFound(err))
}
