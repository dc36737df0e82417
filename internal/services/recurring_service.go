package services

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"github.com/learnloop/campaign-engine/pkg/events"
	"golang.org/x/exp/slog"
)

// DefaultMaxCatchUp bounds how many instances one run creates for a campaign
const DefaultMaxCatchUp = 12

var _ RecurringService = (*RecurringServiceImpl)(nil)

// RecurringServiceImpl creates the time-boxed instances of recurring campaigns
type RecurringServiceImpl struct {
	campaignRepo repositories.CampaignRepository
	instanceRepo repositories.InstanceRepository
	publisher    events.Publisher
	maxCatchUp   int
	Clock        Clock
}

// NewRecurringService creates a new RecurringServiceImpl
func NewRecurringService(
	campaignRepo repositories.CampaignRepository,
	instanceRepo repositories.InstanceRepository,
	publisher events.Publisher,
	maxCatchUp int,
) *RecurringServiceImpl {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &RecurringServiceImpl{
		campaignRepo: campaignRepo,
		instanceRepo: instanceRepo,
		publisher:    publisher,
		maxCatchUp:   maxCatchUp,
		Clock:        systemClock,
	}
}

// InstanceWindow returns the [start, end) window of instance n (1-based).
// Every window is offset from the schedule start so month lengths never drift.
func InstanceWindow(schedule models.CampaignSchedule, n int) (time.Time, time.Time) {
	return addPeriods(schedule.StartDate, schedule.Frequency, n-1),
		addPeriods(schedule.StartDate, schedule.Frequency, n)
}

func addPeriods(t time.Time, frequency models.ScheduleFrequency, k int) time.Time {
	switch frequency {
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7*k)
	case models.FrequencyMonthly:
		return t.AddDate(0, k, 0)
	case models.FrequencyQuarterly:
		return t.AddDate(0, 3*k, 0)
	default:
		return t
	}
}

// RunInstancer creates the next instance of every published recurring
// campaign whose window has opened. Windows missed by earlier runs are created
// in order and flagged as backfilled, so instance numbers never skip.
func (s *RecurringServiceImpl) RunInstancer(ctx context.Context) *RunReport {
	now := s.Clock()
	report := newReport("create-instances", now)

	campaigns, err := s.campaignRepo.FindPublishedRecurring(ctx)
	if err != nil {
		report.fail(err, "failed to list recurring campaigns")
		return report.finish(s.Clock())
	}
	for _, campaign := range campaigns {
		if ctx.Err() != nil {
			break
		}
		report.Processed++
		created, err := s.instantiate(ctx, campaign, now)
		report.Created += created
		if err != nil {
			report.fail(err, "failed to create campaign instance", "campaignId", campaign.ID)
			continue
		}
		if created == 0 {
			report.Skipped++
		} else {
			report.Succeeded++
		}
	}
	return report.finish(s.Clock())
}

func (s *RecurringServiceImpl) instantiate(ctx context.Context, campaign *models.Campaign, now time.Time) (int, error) {
	if !campaign.IsRecurring() {
		return 0, nil
	}
	last, err := s.instanceRepo.LastInstanceNumber(ctx, campaign.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	for created < s.maxCatchUp {
		next := last + 1
		start, end := InstanceWindow(*campaign.Schedule, next)
		if now.Before(start) {
			break
		}
		instance := &models.CampaignInstance{
			ParentCampaignID: campaign.ID,
			InstanceNumber:   next,
			StartDate:        start,
			EndDate:          end,
			Backfilled:       !now.Before(end),
			Stats:            campaign.Stats,
		}
		if err := s.instanceRepo.Create(ctx, instance); err != nil {
			if errors.Is(err, apperrors.ErrDuplicate) {
				// a concurrent run created it; the next run continues from there
				slog.Warn("instance already exists", "campaignId", campaign.ID, "instanceNumber", next)
				return created, nil
			}
			return created, err
		}
		created++
		last = next

		slog.Info("campaign instance created",
			"campaignId", campaign.ID,
			"instanceNumber", next,
			"start", start,
			"end", end,
			"backfilled", instance.Backfilled,
		)
		payload := map[string]interface{}{
			"campaignId":     campaign.ID,
			"instanceNumber": next,
			"startDate":      start,
			"endDate":        end,
			"backfilled":     instance.Backfilled,
		}
		if err := s.publisher.Publish(ctx, events.InstanceCreated, payload); err != nil {
			slog.Warn("failed to publish instance event", "campaignId", campaign.ID, "error", err)
		}

		if !instance.Backfilled {
			break
		}
	}
	if created == s.maxCatchUp {
		slog.Warn("instance catch-up limit reached, remaining windows follow on later runs",
			"campaignId", campaign.ID, "limit", s.maxCatchUp)
	}
	return created, nil
}
