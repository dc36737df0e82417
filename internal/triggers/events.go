// Package triggers turns MongoDB change streams into automation calls: a
// campaign publish starts auto-enroll, a module progress write starts the
// completion check.
package triggers

import (
	"strings"

	"github.com/learnloop/campaign-engine/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ChangeEvent is the subset of a change stream event the triggers read
type ChangeEvent struct {
	OperationType            string             `bson:"operationType"`
	DocumentKey              bson.M             `bson:"documentKey"`
	FullDocument             bson.Raw           `bson:"fullDocument,omitempty"`
	FullDocumentBeforeChange bson.Raw           `bson:"fullDocumentBeforeChange,omitempty"`
	UpdateDescription        *UpdateDescription `bson:"updateDescription,omitempty"`
}

// UpdateDescription lists the fields an update changed
type UpdateDescription struct {
	UpdatedFields bson.M   `bson:"updatedFields"`
	RemovedFields []string `bson:"removedFields"`
}

// touched reports whether the update set or removed a field under prefix
func (e ChangeEvent) touched(prefix string) bool {
	if e.UpdateDescription == nil {
		return false
	}
	for field := range e.UpdateDescription.UpdatedFields {
		if field == prefix || strings.HasPrefix(field, prefix+".") {
			return true
		}
	}
	for _, field := range e.UpdateDescription.RemovedFields {
		if field == prefix || strings.HasPrefix(field, prefix+".") {
			return true
		}
	}
	return false
}

// CampaignChange decodes the before and after images of a campaign write.
// Without a stored pre-image, an update that set metadata.isPublished is
// treated as coming from the unpublished state. ok is false when the event
// cannot be a publish transition.
func CampaignChange(e ChangeEvent) (before, after *models.Campaign, ok bool, err error) {
	if len(e.FullDocument) == 0 {
		return nil, nil, false, nil
	}
	after = &models.Campaign{}
	if err := bson.Unmarshal(e.FullDocument, after); err != nil {
		return nil, nil, false, err
	}

	switch e.OperationType {
	case "insert":
		return nil, after, true, nil
	case "update", "replace":
	default:
		return nil, nil, false, nil
	}

	if len(e.FullDocumentBeforeChange) > 0 {
		before = &models.Campaign{}
		if err := bson.Unmarshal(e.FullDocumentBeforeChange, before); err != nil {
			return nil, nil, false, err
		}
		return before, after, true, nil
	}

	if e.OperationType == "replace" || e.touched("metadata.isPublished") || e.touched("metadata") {
		prior := *after
		prior.Metadata.IsPublished = false
		return &prior, after, true, nil
	}
	return nil, nil, false, nil
}

// ProgressChange returns the (campaign, user) pair of an enrollment write that
// changed module progress. Status and stats writes made by the automation
// itself do not touch moduleProgress, so they never re-trigger it.
func ProgressChange(e ChangeEvent) (campaignID, userID string, ok bool, err error) {
	switch e.OperationType {
	case "update":
		if !e.touched("moduleProgress") {
			return "", "", false, nil
		}
	case "replace":
	default:
		return "", "", false, nil
	}
	if len(e.FullDocument) == 0 {
		return "", "", false, nil
	}

	var enrollment struct {
		CampaignID string `bson:"campaignId"`
		UserID     string `bson:"userId"`
	}
	if err := bson.Unmarshal(e.FullDocument, &enrollment); err != nil {
		return "", "", false, err
	}
	if enrollment.CampaignID == "" || enrollment.UserID == "" {
		return "", "", false, nil
	}
	return enrollment.CampaignID, enrollment.UserID, true, nil
}
