package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignInstance is one time-boxed recurrence of a recurring campaign
type CampaignInstance struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ParentCampaignID string             `bson:"parentCampaignId" json:"parentCampaignId"`
	InstanceNumber   int                `bson:"instanceNumber" json:"instanceNumber"`
	StartDate        time.Time          `bson:"startDate" json:"startDate"`
	EndDate          time.Time          `bson:"endDate" json:"endDate"`
	Backfilled       bool               `bson:"backfilled" json:"backfilled"`
	Stats            CampaignStats      `bson:"stats" json:"stats"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
