package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.InstanceRepository = (*InstanceRepository)(nil)

// InstanceRepository handles campaign instances created by the recurring instancer
type InstanceRepository struct {
	collection *mongo.Collection
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db *mongo.Database) *InstanceRepository {
	return &InstanceRepository{
		collection: db.Collection(InstancesCollection),
	}
}

// LastInstanceNumber returns the highest instance number of a parent, 0 if none
func (r *InstanceRepository) LastInstanceNumber(ctx context.Context, parentCampaignID string) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "instanceNumber", Value: -1}}).
		SetProjection(bson.M{"instanceNumber": 1})

	var last models.CampaignInstance
	err := r.collection.FindOne(ctx, bson.M{"parentCampaignId": parentCampaignID}, opts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.InstanceNumber, nil
}

// Create inserts a new instance; the unique (parent, number) index rejects repeats
func (r *InstanceRepository) Create(ctx context.Context, instance *models.CampaignInstance) error {
	if instance.ID.IsZero() {
		instance.ID = primitive.NewObjectID()
	}
	instance.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, instance)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("instance %d of %s: %w", instance.InstanceNumber, instance.ParentCampaignID, apperrors.ErrDuplicate)
	}
	return err
}
