package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"golang.org/x/exp/slog"
)

var _ ProgressService = (*ProgressServiceImpl)(nil)

// VideoCompletion is the event sent when a learner finishes a module video
type VideoCompletion struct {
	CampaignID      string
	UserID          string
	ItemID          string
	VideoID         string
	WatchedDuration float64
	TotalDuration   float64
}

// Answer is one learner response to a question slide
type Answer struct {
	CampaignID       string
	UserID           string
	ItemID           string
	VideoID          string
	QuestionID       string
	Value            string
	SelectedOptionID string
}

// XPRewards are the experience points granted for progress
type XPRewards struct {
	PerVideo  int
	PerAnswer int
}

// ProgressServiceImpl records learner progress with atomic, idempotent writes
type ProgressServiceImpl struct {
	campaignRepo   repositories.CampaignRepository
	enrollmentRepo repositories.EnrollmentRepository
	responseRepo   repositories.ResponseRepository
	videoRepo      repositories.VideoRepository
	userRepo       repositories.UserRepository
	stats          StatsService
	xp             XPRewards
	Clock          Clock
}

// NewProgressService creates a new ProgressServiceImpl
func NewProgressService(
	campaignRepo repositories.CampaignRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	responseRepo repositories.ResponseRepository,
	videoRepo repositories.VideoRepository,
	userRepo repositories.UserRepository,
	stats StatsService,
	xp XPRewards,
) *ProgressServiceImpl {
	return &ProgressServiceImpl{
		campaignRepo:   campaignRepo,
		enrollmentRepo: enrollmentRepo,
		responseRepo:   responseRepo,
		videoRepo:      videoRepo,
		userRepo:       userRepo,
		stats:          stats,
		xp:             xp,
		Clock:          systemClock,
	}
}

// RecordAccess counts a visit, enrolling the learner first if auto-enroll has not reached them
func (s *ProgressServiceImpl) RecordAccess(ctx context.Context, campaignID, userID string) (*models.Enrollment, error) {
	campaign, err := s.publishedCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	enrollmentID, err := s.ensureEnrollment(ctx, campaign, userID)
	if err != nil {
		return nil, err
	}
	if err := s.enrollmentRepo.RecordAccess(ctx, enrollmentID, s.Clock()); err != nil {
		return nil, fmt.Errorf("failed to record access: %w", err)
	}
	return s.enrollmentRepo.FindByID(ctx, enrollmentID)
}

// RecordVideoCompletion sets the module's videoFinished flag. The question
// target comes from the stored video, not the client.
func (s *ProgressServiceImpl) RecordVideoCompletion(ctx context.Context, event VideoCompletion) error {
	campaign, err := s.publishedCampaign(ctx, event.CampaignID)
	if err != nil {
		return err
	}
	if _, err := resolveItem(campaign, event.ItemID, event.VideoID); err != nil {
		return err
	}
	video, err := s.videoRepo.FindByID(ctx, event.VideoID)
	if err != nil {
		return err
	}

	enrollmentID, err := s.ensureEnrollment(ctx, campaign, event.UserID)
	if err != nil {
		return err
	}

	firstTime, err := s.enrollmentRepo.MarkVideoFinished(ctx, enrollmentID, event.ItemID, repositories.VideoProgress{
		QuestionTarget:  len(video.Questions),
		WatchedDuration: event.WatchedDuration,
		TotalDuration:   event.TotalDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to mark video finished: %w", err)
	}
	if err := s.enrollmentRepo.RefreshModuleCompletion(ctx, enrollmentID, event.ItemID); err != nil {
		return fmt.Errorf("failed to refresh module completion: %w", err)
	}
	if firstTime {
		s.addXP(ctx, enrollmentID, s.xp.PerVideo)
	}
	s.markStarted(ctx, campaign.ID, enrollmentID)
	return nil
}

// RecordAnswer stores the response and adds one to questionsAnswered. The
// counter is keyed by question id, so a retry after a failed count still
// counts once. A question that is both stored and counted returns
// ErrAlreadyAnswered.
func (s *ProgressServiceImpl) RecordAnswer(ctx context.Context, answer Answer) error {
	campaign, err := s.publishedCampaign(ctx, answer.CampaignID)
	if err != nil {
		return err
	}
	if _, err := resolveItem(campaign, answer.ItemID, answer.VideoID); err != nil {
		return err
	}
	video, err := s.videoRepo.FindByID(ctx, answer.VideoID)
	if err != nil {
		return err
	}
	question, ok := video.FindQuestion(answer.QuestionID)
	if !ok {
		return fmt.Errorf("question %s: %w", answer.QuestionID, apperrors.ErrUnknownQuestion)
	}
	if question.IsChoice() && !question.HasOption(answer.SelectedOptionID) {
		return fmt.Errorf("option %q: %w", answer.SelectedOptionID, apperrors.ErrInvalidOption)
	}

	enrollmentID, err := s.ensureEnrollment(ctx, campaign, answer.UserID)
	if err != nil {
		return err
	}

	created, err := s.responseRepo.CreateIfAbsent(ctx, &models.Response{
		ID:               models.ResponseID(campaign.ID, answer.VideoID, answer.QuestionID, answer.UserID),
		CampaignID:       campaign.ID,
		ItemID:           answer.ItemID,
		VideoID:          answer.VideoID,
		QuestionID:       answer.QuestionID,
		UserID:           answer.UserID,
		Value:            answer.Value,
		SelectedOptionID: answer.SelectedOptionID,
		CreatedAt:        s.Clock(),
	})
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}

	incremented, err := s.enrollmentRepo.IncrementQuestionsAnswered(ctx, enrollmentID, answer.ItemID, answer.QuestionID, len(video.Questions))
	if err != nil {
		return fmt.Errorf("failed to count answer: %w", err)
	}
	if !created && !incremented {
		return apperrors.ErrAlreadyAnswered
	}
	if !created {
		slog.Warn("counted answer from an earlier attempt", "enrollmentId", enrollmentID, "questionId", answer.QuestionID)
	}
	if err := s.enrollmentRepo.RefreshModuleCompletion(ctx, enrollmentID, answer.ItemID); err != nil {
		return fmt.Errorf("failed to refresh module completion: %w", err)
	}
	if incremented {
		s.addXP(ctx, enrollmentID, s.xp.PerAnswer)
	}
	s.markStarted(ctx, campaign.ID, enrollmentID)
	return nil
}

func (s *ProgressServiceImpl) publishedCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Metadata.IsPublished {
		return nil, apperrors.ErrNotPublished
	}
	return campaign, nil
}

// ensureEnrollment creates the enrollment on first access when it does not
// exist yet. Only users the campaign targets may enroll this way.
func (s *ProgressServiceImpl) ensureEnrollment(ctx context.Context, campaign *models.Campaign, userID string) (string, error) {
	enrollmentID := models.EnrollmentID(campaign.ID, userID)
	if _, err := s.enrollmentRepo.FindByID(ctx, enrollmentID); err == nil {
		return enrollmentID, nil
	} else if !apperrors.IsNotFound(err) {
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if apperrors.IsNotFound(err) {
		return "", fmt.Errorf("user %s: %w", userID, apperrors.ErrNotInAudience)
	} else if err != nil {
		return "", err
	}
	if user.OrganizationID != campaign.PrimaryOrganization() || !MatchesFilters(campaign, user) {
		return "", fmt.Errorf("user %s: %w", userID, apperrors.ErrNotInAudience)
	}

	now := s.Clock()
	created, err := s.enrollmentRepo.CreateIfAbsent(ctx, &models.Enrollment{
		ID:             enrollmentID,
		CampaignID:     campaign.ID,
		UserID:         userID,
		OrganizationID: user.OrganizationID,
		Status:         models.StatusNotStarted,
		Source:         models.SourceFirstAccess,
		EnrolledAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create enrollment: %w", err)
	}
	if created {
		slog.Info("enrollment created on first access", "campaignId", campaign.ID, "userId", userID)
		if _, err := s.stats.Recompute(ctx, campaign.ID); err != nil {
			slog.Error("failed to recompute campaign stats", "campaignId", campaign.ID, "error", err)
		}
	}
	return enrollmentID, nil
}

// markStarted moves a not-started enrollment to in-progress
func (s *ProgressServiceImpl) markStarted(ctx context.Context, campaignID, enrollmentID string) {
	moved, err := s.enrollmentRepo.TransitionStatus(ctx, enrollmentID, models.StatusNotStarted, models.StatusInProgress, s.Clock())
	if err != nil {
		slog.Error("failed to start enrollment", "enrollmentId", enrollmentID, "error", err)
		return
	}
	if !moved {
		return
	}
	if _, err := s.stats.Recompute(ctx, campaignID); err != nil {
		slog.Error("failed to recompute campaign stats", "campaignId", campaignID, "error", err)
	}
}

func (s *ProgressServiceImpl) addXP(ctx context.Context, enrollmentID string, xp int) {
	if err := s.enrollmentRepo.AddXP(ctx, enrollmentID, xp); err != nil {
		slog.Error("failed to add xp", "enrollmentId", enrollmentID, "xp", xp, "error", err)
	}
}

// resolveItem finds the campaign item that plays videoID. Item ids become
// document field names, so dots are rejected.
func resolveItem(campaign *models.Campaign, itemID, videoID string) (models.CampaignItem, error) {
	if itemID == "" || strings.ContainsAny(itemID, ".$") {
		return models.CampaignItem{}, fmt.Errorf("item %q: %w", itemID, apperrors.ErrUnknownItem)
	}
	for _, item := range campaign.Items {
		if item.ItemID == itemID && item.VideoID == videoID {
			return item, nil
		}
	}
	return models.CampaignItem{}, fmt.Errorf("item %q with video %q: %w", itemID, videoID, apperrors.ErrUnknownItem)
}
