package triggers

import (
	"context"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/exp/slog"
)

// EnrollmentFeed streams the latest state of single enrollments to the player
type EnrollmentFeed struct {
	collection *mongo.Collection
}

// NewEnrollmentFeed creates a new EnrollmentFeed
func NewEnrollmentFeed(db *mongo.Database) *EnrollmentFeed {
	return &EnrollmentFeed{collection: db.Collection(mongodb.EnrollmentsCollection)}
}

// Subscribe emits the enrollment after every write to it. The channel is
// closed when ctx ends or the stream fails.
func (f *EnrollmentFeed) Subscribe(ctx context.Context, enrollmentID string) (<-chan *models.Enrollment, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"documentKey._id": enrollmentID,
			"operationType":   bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}
	cs, err := f.collection.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, err
	}

	out := make(chan *models.Enrollment, 1)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			var event struct {
				FullDocument *models.Enrollment `bson:"fullDocument"`
			}
			if err := cs.Decode(&event); err != nil || event.FullDocument == nil {
				continue
			}
			select {
			case out <- event.FullDocument:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			slog.Warn("enrollment feed stopped", "enrollmentId", enrollmentID, "error", err)
		}
	}()
	return out, nil
}
