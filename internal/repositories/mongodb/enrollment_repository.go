package mongodb

import (
	"context"
	"time"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure EnrollmentRepository implements the interface
var _ repositories.EnrollmentRepository = (*EnrollmentRepository)(nil)

// EnrollmentRepository handles MongoDB operations for enrollments and their module progress
type EnrollmentRepository struct {
	collection *mongo.Collection
}

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db *mongo.Database) *EnrollmentRepository {
	return &EnrollmentRepository{
		collection: db.Collection(EnrollmentsCollection),
	}
}

func modulePath(itemID, field string) string {
	return "moduleProgress." + itemID + "." + field
}

// FindByID finds an enrollment by its composite key
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&enrollment)
	if err != nil {
		return nil, notFound(err, "enrollment", id)
	}
	return &enrollment, nil
}

// CreateIfAbsent upserts the enrollment with $setOnInsert so an existing
// document for the same (campaign, user) key is never touched
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	doc, err := insertDoc(enrollment)
	if err != nil {
		return false, err
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": enrollment.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// two concurrent upserts on the same _id: the loser sees a duplicate key
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return result.UpsertedCount == 1, nil
}

// FindByCampaignAndStatuses finds the enrollments of a campaign in any of the statuses
func (r *EnrollmentRepository) FindByCampaignAndStatuses(ctx context.Context, campaignID string, statuses []models.EnrollmentStatus) ([]*models.Enrollment, error) {
	filter := bson.M{
		"campaignId": campaignID,
		"status":     bson.M{"$in": statuses},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var enrollments []*models.Enrollment
	if err := cursor.All(ctx, &enrollments); err != nil {
		return nil, err
	}
	if enrollments == nil {
		enrollments = []*models.Enrollment{}
	}
	return enrollments, nil
}

// CountByStatus groups a campaign's enrollments by status
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, campaignID string) (map[models.EnrollmentStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"campaignId": campaignID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.EnrollmentStatus `bson:"_id"`
		Count  int                     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.EnrollmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// MarkVideoFinished sets the module's videoFinished flag. Repeating the call
// leaves the module unchanged apart from keeping the longest watched duration.
func (r *EnrollmentRepository) MarkVideoFinished(ctx context.Context, id, itemID string, progress repositories.VideoProgress) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			modulePath(itemID, "videoFinished"):  true,
			modulePath(itemID, "questionTarget"): progress.QuestionTarget,
			modulePath(itemID, "totalDuration"):  progress.TotalDuration,
		},
		"$max": bson.M{modulePath(itemID, "watchedDuration"): progress.WatchedDuration},
		// materialise the counter so completion comparisons never see a missing field
		"$inc":         bson.M{modulePath(itemID, "questionsAnswered"): 0},
		"$currentDate": bson.M{"updatedAt": true, modulePath(itemID, "updatedAt"): true},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"moduleProgress." + itemID: 1})

	var before models.Enrollment
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before)
	if err != nil {
		return false, notFound(err, "enrollment", id)
	}
	return !before.Module(itemID).VideoFinished, nil
}

// IncrementQuestionsAnswered adds one answer with $inc, guarded so the counter
// never passes target. The question id goes into answeredQuestions in the same
// write, so a retried call for the same question matches nothing.
func (r *EnrollmentRepository) IncrementQuestionsAnswered(ctx context.Context, id, itemID, questionID string, target int) (bool, error) {
	counter := modulePath(itemID, "questionsAnswered")
	answered := modulePath(itemID, "answeredQuestions")
	filter := bson.M{
		"_id":    id,
		answered: bson.M{"$ne": questionID},
		"$or": []bson.M{
			{counter: bson.M{"$lt": target}},
			{counter: bson.M{"$exists": false}},
		},
	}
	update := bson.M{
		"$inc":         bson.M{counter: 1},
		"$addToSet":    bson.M{answered: questionID},
		"$set":         bson.M{modulePath(itemID, "questionTarget"): target},
		"$currentDate": bson.M{"updatedAt": true, modulePath(itemID, "updatedAt"): true},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// RefreshModuleCompletion recomputes the stored completed flag inside the
// database so concurrent writers cannot clear it
func (r *EnrollmentRepository) RefreshModuleCompletion(ctx context.Context, id, itemID string) error {
	filter := bson.M{
		"_id":                            id,
		modulePath(itemID, "completed"): bson.M{"$ne": true},
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$" + modulePath(itemID, "videoFinished"), true}},
			bson.M{"$gte": bson.A{
				"$" + modulePath(itemID, "questionsAnswered"),
				"$" + modulePath(itemID, "questionTarget"),
			}},
		}},
	}
	update := bson.M{
		"$set":         bson.M{modulePath(itemID, "completed"): true},
		"$currentDate": bson.M{"updatedAt": true},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

// TransitionStatus performs a compare-and-set on the enrollment status
func (r *EnrollmentRepository) TransitionStatus(ctx context.Context, id string, from, to models.EnrollmentStatus, at time.Time) (bool, error) {
	set := bson.M{"status": to}
	switch to {
	case models.StatusInProgress:
		set["startedAt"] = at
	case models.StatusCompleted:
		set["completedAt"] = at
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set, "$currentDate": bson.M{"updatedAt": true}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// RecordAccess bumps the access counter
func (r *EnrollmentRepository) RecordAccess(ctx context.Context, id string, at time.Time) error {
	update := bson.M{
		"$inc":         bson.M{"accessCount": 1},
		"$set":         bson.M{"lastAccessedAt": at},
		"$currentDate": bson.M{"updatedAt": true},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "enrollment", id)
	}
	return nil
}

// AddXP atomically increments xpEarned
func (r *EnrollmentRepository) AddXP(ctx context.Context, id string, xp int) error {
	if xp <= 0 {
		return nil
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"xpEarned": xp}})
	return err
}
