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

// Compile-time check to ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository handles MongoDB operations for User
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
	}
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// FindByOrganization retrieves every member of an organization
func (r *UserRepository) FindByOrganization(ctx context.Context, organizationID string) ([]*models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"organizationId": organizationID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// Upsert writes the directory fields of user, inserting it when the ID is new
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (bool, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":          user.Email,
			"displayName":    user.DisplayName,
			"organizationId": user.OrganizationID,
			"department":     user.Department,
			"employeeId":     user.EmployeeID,
			"cohortIds":      user.CohortIDs,
			"updatedAt":      now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}
