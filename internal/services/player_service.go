package services

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/player"
	"github.com/learnloop/campaign-engine/internal/repositories"
)

var _ PlayerService = (*PlayerServiceImpl)(nil)

// PlayerView is everything the player needs to render a learner session
type PlayerView struct {
	CampaignID  string                   `json:"campaignId"`
	Title       string                   `json:"title"`
	Slides      []player.Slide           `json:"slides"`
	Modules     []player.ModuleView      `json:"modules"`
	ResumeIndex int                      `json:"resumeIndex"`
	Completed   bool                     `json:"completed"`
	Status      models.EnrollmentStatus  `json:"status"`
	XPEarned    int                      `json:"xpEarned"`
	Videos      map[string]*models.Video `json:"videos"`
}

// PlayerServiceImpl assembles the player view from campaign, videos and enrollment
type PlayerServiceImpl struct {
	campaignRepo   repositories.CampaignRepository
	videoRepo      repositories.VideoRepository
	enrollmentRepo repositories.EnrollmentRepository
}

// NewPlayerService creates a new PlayerServiceImpl
func NewPlayerService(
	campaignRepo repositories.CampaignRepository,
	videoRepo repositories.VideoRepository,
	enrollmentRepo repositories.EnrollmentRepository,
) *PlayerServiceImpl {
	return &PlayerServiceImpl{
		campaignRepo:   campaignRepo,
		videoRepo:      videoRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Load builds the slide sequence for campaignID and where userID resumes.
// A campaign without items returns ErrNoItems.
func (s *PlayerServiceImpl) Load(ctx context.Context, campaignID, userID string) (*PlayerView, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Metadata.IsPublished {
		return nil, apperrors.ErrNotPublished
	}
	items := campaign.SortedItems()
	if len(items) == 0 {
		return nil, apperrors.ErrNoItems
	}

	videoIDs := make([]string, 0, len(items))
	for _, item := range items {
		videoIDs = append(videoIDs, item.VideoID)
	}
	videos, err := s.videoRepo.FindByIDs(ctx, videoIDs)
	if err != nil {
		return nil, err
	}

	resolved := make([]player.ResolvedItem, 0, len(items))
	for _, item := range items {
		video, ok := videos[item.VideoID]
		if !ok {
			return nil, apperrors.NewNotFound("video", item.VideoID)
		}
		resolved = append(resolved, player.ResolvedItem{
			ItemID:      item.ItemID,
			VideoID:     item.VideoID,
			Order:       item.Order,
			QuestionIDs: video.QuestionIDs(),
		})
	}

	view := &PlayerView{
		CampaignID: campaign.ID,
		Title:      campaign.Title,
		Status:     models.StatusNotStarted,
		Videos:     videos,
	}

	var progress map[string]models.ModuleState
	enrollment, err := s.enrollmentRepo.FindByID(ctx, models.EnrollmentID(campaignID, userID))
	switch {
	case err == nil:
		progress = enrollment.ModuleProgress
		view.Status = enrollment.Status
		view.XPEarned = enrollment.XPEarned
	case !apperrors.IsNotFound(err):
		return nil, err
	}

	seq := player.BuildSequence(resolved)
	view.Slides = seq.Slides
	view.Modules = player.Modules(seq, progress)
	view.ResumeIndex, view.Completed = player.ResumeIndex(seq, progress)
	if view.Status == models.StatusCompleted {
		view.Completed = true
	}
	return view, nil
}
