package mongodb

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ repositories.VideoRepository = (*VideoRepository)(nil)

// VideoRepository reads videos and their question lists
type VideoRepository struct {
	collection *mongo.Collection
}

// NewVideoRepository creates a new VideoRepository
func NewVideoRepository(db *mongo.Database) *VideoRepository {
	return &VideoRepository{
		collection: db.Collection(VideosCollection),
	}
}

// FindByID finds a video by ID
func (r *VideoRepository) FindByID(ctx context.Context, id string) (*models.Video, error) {
	var video models.Video
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&video)
	if err != nil {
		return nil, notFound(err, "video", id)
	}
	return &video, nil
}

// FindByIDs loads several videos in one query, keyed by ID
func (r *VideoRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Video, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var videos []*models.Video
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	return byID, nil
}
