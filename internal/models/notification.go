package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType selects the email a notification produces
type NotificationType string

const (
	NotificationInvitation NotificationType = "invitation"
	NotificationReminder   NotificationType = "reminder"
	NotificationCompletion NotificationType = "completion"
)

// NotificationStatus is the queue lifecycle of a notification
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification represents a queued outbound email
type Notification struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID     string             `bson:"campaignId" json:"campaignId"`
	UserID         string             `bson:"userId" json:"userId"`
	OrganizationID string             `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	Type           NotificationType   `bson:"type" json:"type"`
	Status         NotificationStatus `bson:"status" json:"status"`
	RecipientEmail string             `bson:"recipientEmail" json:"recipientEmail"`
	RecipientName  string             `bson:"recipientName,omitempty" json:"recipientName,omitempty"`
	ScheduledFor   time.Time          `bson:"scheduledFor" json:"scheduledFor"`
	SentAt         *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	RetryCount     int                `bson:"retryCount" json:"retryCount"`
	FailureReason  string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
