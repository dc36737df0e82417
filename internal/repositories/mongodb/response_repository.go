package mongodb

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.ResponseRepository = (*ResponseRepository)(nil)

// ResponseRepository stores question responses keyed by (campaign, video, question, user)
type ResponseRepository struct {
	collection *mongo.Collection
}

// NewResponseRepository creates a new ResponseRepository
func NewResponseRepository(db *mongo.Database) *ResponseRepository {
	return &ResponseRepository{
		collection: db.Collection(ResponsesCollection),
	}
}

// CreateIfAbsent inserts the response unless the learner already answered
func (r *ResponseRepository) CreateIfAbsent(ctx context.Context, response *models.Response) (bool, error) {
	doc, err := insertDoc(response)
	if err != nil {
		return false, err
	}
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": response.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return result.UpsertedCount == 1, nil
}
