package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnloop/campaign-engine/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by the repositories and the change stream triggers
const (
	CampaignsCollection     = "campaigns"
	EnrollmentsCollection   = "enrollments"
	ResponsesCollection     = "responses"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
	VideosCollection        = "videos"
	InstancesCollection     = "campaignInstances"
)

// notFound converts mongo.ErrNoDocuments into a typed not-found error
func notFound(err error, kind, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NewNotFound(kind, id)
	}
	return err
}

// insertDoc marshals v into a document suitable for $setOnInsert.
// _id comes from the upsert filter.
func insertDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

// EnsureIndexes creates the indexes the automation queries rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		NotificationsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledFor", Value: 1}}},
			{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
		},
		EnrollmentsCollection: {
			{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		InstancesCollection: {
			{
				Keys:    bson.D{{Key: "parentCampaignId", Value: 1}, {Key: "instanceNumber", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "organizationId", Value: 1}}},
		},
		CampaignsCollection: {
			{Keys: bson.D{{Key: "metadata.isPublished", Value: 1}, {Key: "schedule.frequency", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// EnablePreImages turns on change stream pre-images for campaigns so the
// dispatcher can compare the published flag before and after a write.
// Requires MongoDB 6.0 or later.
func EnablePreImages(ctx context.Context, db *mongo.Database) error {
	cmd := bson.D{
		{Key: "collMod", Value: CampaignsCollection},
		{Key: "changeStreamPreAndPostImages", Value: bson.M{"enabled": true}},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("enable pre-images on %s: %w", CampaignsCollection, err)
	}
	return nil
}
