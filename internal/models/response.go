package models

import (
	"time"
)

// Response stores one learner's answer to one question
type Response struct {
	ID               string    `bson:"_id" json:"id"`
	CampaignID       string    `bson:"campaignId" json:"campaignId"`
	ItemID           string    `bson:"itemId" json:"itemId"`
	VideoID          string    `bson:"videoId" json:"videoId"`
	QuestionID       string    `bson:"questionId" json:"questionId"`
	UserID           string    `bson:"userId" json:"userId"`
	Value            string    `bson:"value" json:"value"`
	SelectedOptionID string    `bson:"selectedOptionId,omitempty" json:"selectedOptionId,omitempty"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}

// ResponseID returns the deterministic document key for an answer
func ResponseID(campaignID, videoID, questionID, userID string) string {
	return campaignID + "_" + videoID + "_" + questionID + "_" + userID
}
