package mongodb

import (
	"context"
	"time"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure NotificationRepository implements the interface
var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository implements the notification queue on a MongoDB collection
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection(NotificationsCollection),
	}
}

// Create inserts a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, notification)
	return err
}

// FindByID finds a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error) {
	var notification models.Notification
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&notification)
	if err != nil {
		return nil, notFound(err, "notification", id.Hex())
	}
	return &notification, nil
}

// FindPending fetches the next batch of due pending notifications, oldest first
func (r *NotificationRepository) FindPending(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "scheduledFor", Value: 1}})

	filter := bson.M{
		"status":       models.NotificationPending,
		"scheduledFor": bson.M{"$lte": now},
	}
	return r.find(ctx, filter, opts)
}

// FindRetryable fetches failed notifications that have not used up their retries
func (r *NotificationRepository) FindRetryable(ctx context.Context, campaignID string, maxRetries, limit int) ([]*models.Notification, error) {
	filter := bson.M{
		"status":     models.NotificationFailed,
		"retryCount": bson.M{"$lt": maxRetries},
	}
	if campaignID != "" {
		filter["campaignId"] = campaignID
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "updatedAt", Value: 1}})
	return r.find(ctx, filter, opts)
}

// MarkSent moves a pending notification to sent
func (r *NotificationRepository) MarkSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.NotificationPending, bson.M{
		"$set": bson.M{
			"status":        models.NotificationSent,
			"sentAt":        at,
			"failureReason": "",
		},
		"$currentDate": bson.M{"updatedAt": true},
	})
}

// MarkFailed moves a pending notification to failed and counts the attempt
func (r *NotificationRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.NotificationPending, bson.M{
		"$set": bson.M{
			"status":        models.NotificationFailed,
			"failureReason": reason,
			"updatedAt":     at,
		},
		"$inc": bson.M{"retryCount": 1},
	})
}

// MarkPending moves a failed notification back to pending
func (r *NotificationRepository) MarkPending(ctx context.Context, id primitive.ObjectID, scheduledFor time.Time) (bool, error) {
	return r.transition(ctx, id, models.NotificationFailed, bson.M{
		"$set": bson.M{
			"status":       models.NotificationPending,
			"scheduledFor": scheduledFor,
		},
		"$currentDate": bson.M{"updatedAt": true},
	})
}

// ReminderHistory counts sent reminders for a pair and finds the latest one
func (r *NotificationRepository) ReminderHistory(ctx context.Context, campaignID, userID string) (repositories.ReminderHistory, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"campaignId": campaignID,
			"userId":     userID,
			"type":       models.NotificationReminder,
			"status":     models.NotificationSent,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"count":    bson.M{"$sum": 1},
			"lastSent": bson.M{"$max": "$sentAt"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return repositories.ReminderHistory{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Count    int        `bson:"count"`
		LastSent *time.Time `bson:"lastSent"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return repositories.ReminderHistory{}, err
	}
	if len(rows) == 0 {
		return repositories.ReminderHistory{}, nil
	}
	return repositories.ReminderHistory{SentCount: rows[0].Count, LastSent: rows[0].LastSent}, nil
}

// HasPending reports whether a pending notification of the type exists for a pair
func (r *NotificationRepository) HasPending(ctx context.Context, campaignID, userID string, notificationType models.NotificationType) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"campaignId": campaignID,
		"userId":     userID,
		"type":       notificationType,
		"status":     models.NotificationPending,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *NotificationRepository) transition(ctx context.Context, id primitive.ObjectID, from models.NotificationStatus, update bson.M) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *NotificationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Notification, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}
