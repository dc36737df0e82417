package models

import (
	"sort"
	"time"
)

// QuestionType distinguishes free-text from choice questions
type QuestionType string

const (
	QuestionFreeText       QuestionType = "free-text"
	QuestionSingleChoice   QuestionType = "single-choice"
	QuestionMultipleChoice QuestionType = "multiple-choice"
)

// Question is an assessment question attached to a video
type Question struct {
	ID      string       `bson:"id" json:"id"`
	Type    QuestionType `bson:"type" json:"type"`
	Prompt  string       `bson:"prompt" json:"prompt"`
	Options []Option     `bson:"options,omitempty" json:"options,omitempty"`
	Order   int          `bson:"order" json:"order"`
}

// IsChoice reports whether answers select an option
func (q Question) IsChoice() bool {
	return q.Type == QuestionSingleChoice || q.Type == QuestionMultipleChoice
}

// Option is a selectable answer of a choice question
type Option struct {
	ID    string `bson:"id" json:"id"`
	Label string `bson:"label" json:"label"`
}

// Video is a learning video with its ordered question list
type Video struct {
	ID        string     `bson:"_id" json:"id"`
	Title     string     `bson:"title" json:"title"`
	URL       string     `bson:"url" json:"url"`
	Duration  float64    `bson:"duration" json:"duration"`
	Questions []Question `bson:"questions" json:"questions"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

// QuestionIDs returns the ids of the video questions in display order
func (v *Video) QuestionIDs() []string {
	questions := make([]Question, len(v.Questions))
	copy(questions, v.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// FindQuestion returns the question with the given id
func (v *Video) FindQuestion(id string) (Question, bool) {
	for _, q := range v.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// HasOption reports whether optionID is one of the question's options
func (q Question) HasOption(optionID string) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
