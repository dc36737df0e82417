package mongodb

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Compile-time check to ensure CampaignRepository implements the interface
var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository handles MongoDB operations for campaigns
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection(CampaignsCollection),
	}
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return &campaign, nil
}

// FindPublishedWithReminders finds published campaigns that send reminders
func (r *CampaignRepository) FindPublishedWithReminders(ctx context.Context) ([]*models.Campaign, error) {
	return r.find(ctx, bson.M{
		"metadata.isPublished":     true,
		"automation.sendReminders": true,
	})
}

// FindPublishedRecurring finds published campaigns with a recurring schedule
func (r *CampaignRepository) FindPublishedRecurring(ctx context.Context) ([]*models.Campaign, error) {
	return r.find(ctx, bson.M{
		"metadata.isPublished": true,
		"schedule.frequency": bson.M{"$in": []models.ScheduleFrequency{
			models.FrequencyWeekly,
			models.FrequencyMonthly,
			models.FrequencyQuarterly,
		}},
	})
}

// UpdateStats overwrites the campaign stats with a server timestamp
func (r *CampaignRepository) UpdateStats(ctx context.Context, id string, stats models.CampaignStats) error {
	update := bson.M{
		"$set":         bson.M{"stats": stats},
		"$currentDate": bson.M{"updatedAt": true},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "campaign", id)
	}
	return nil
}

func (r *CampaignRepository) find(ctx context.Context, filter bson.M) ([]*models.Campaign, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}
