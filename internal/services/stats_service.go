package services

import (
	"context"
	"fmt"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
)

var _ StatsService = (*StatsServiceImpl)(nil)

// StatsServiceImpl is the single writer of Campaign.stats. Every write is a
// full overwrite computed from enrollment status counts, so the four counters
// always agree with each other.
type StatsServiceImpl struct {
	campaignRepo   repositories.CampaignRepository
	enrollmentRepo repositories.EnrollmentRepository
}

// NewStatsService creates a new StatsServiceImpl
func NewStatsService(campaignRepo repositories.CampaignRepository, enrollmentRepo repositories.EnrollmentRepository) *StatsServiceImpl {
	return &StatsServiceImpl{
		campaignRepo:   campaignRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Recompute counts enrollments by status and writes the result to the campaign
func (s *StatsServiceImpl) Recompute(ctx context.Context, campaignID string) (models.CampaignStats, error) {
	counts, err := s.enrollmentRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		return models.CampaignStats{}, fmt.Errorf("failed to count enrollments: %w", err)
	}
	stats := models.StatsFromCounts(counts)
	if err := s.campaignRepo.UpdateStats(ctx, campaignID, stats); err != nil {
		return stats, fmt.Errorf("failed to update campaign stats: %w", err)
	}
	return stats, nil
}
