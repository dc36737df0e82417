package models

import (
	"fmt"
	"time"
)

// EnrollmentStatus is the whole-campaign state of one learner
type EnrollmentStatus string

const (
	StatusNotStarted EnrollmentStatus = "not-started"
	StatusInProgress EnrollmentStatus = "in-progress"
	StatusCompleted  EnrollmentStatus = "completed"
)

// Valid reports whether s is a known status
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine allows moving from s to next.
// Transitions only move forward; completed is terminal.
func (s EnrollmentStatus) CanTransition(next EnrollmentStatus) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusInProgress || next == StatusCompleted
	case StatusInProgress:
		return next == StatusCompleted
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// Transition returns next if the move is allowed, otherwise an error
func (s EnrollmentStatus) Transition(next EnrollmentStatus) (EnrollmentStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("enrollment status cannot move from %q to %q", s, next)
	}
	return next, nil
}

// ModulePhase is the explicit progress phase of one module
type ModulePhase int

const (
	// PhaseWatching means the module video has not been finished
	PhaseWatching ModulePhase = iota
	// PhaseAnswering means the video is finished but questions remain
	PhaseAnswering
	// PhaseComplete means the video is finished and every question is answered
	PhaseComplete
)

func (p ModulePhase) String() string {
	switch p {
	case PhaseWatching:
		return "watching"
	case PhaseAnswering:
		return "answering"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ModuleState is the per-module progress embedded in an enrollment
type ModuleState struct {
	VideoFinished     bool       `bson:"videoFinished" json:"videoFinished"`
	QuestionsAnswered int        `bson:"questionsAnswered" json:"questionsAnswered"`
	QuestionTarget    int        `bson:"questionTarget" json:"questionTarget"`
	AnsweredQuestions []string   `bson:"answeredQuestions,omitempty" json:"answeredQuestions,omitempty"`
	Completed         bool       `bson:"completed" json:"completed"`
	WatchedDuration   float64    `bson:"watchedDuration" json:"watchedDuration"`
	TotalDuration     float64    `bson:"totalDuration" json:"totalDuration"`
	UpdatedAt         *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Phase derives the module phase from the two monotonic inputs.
// This is the single place the completion rule lives.
func (m ModuleState) Phase() ModulePhase {
	switch {
	case !m.VideoFinished:
		return PhaseWatching
	case m.QuestionsAnswered < m.QuestionTarget:
		return PhaseAnswering
	default:
		return PhaseComplete
	}
}

// IsComplete reports whether the module is complete
func (m ModuleState) IsComplete() bool {
	return m.Phase() == PhaseComplete
}

// Enrollment records one learner's participation in one campaign
type Enrollment struct {
	ID             string                 `bson:"_id" json:"id"`
	CampaignID     string                 `bson:"campaignId" json:"campaignId"`
	UserID         string                 `bson:"userId" json:"userId"`
	OrganizationID string                 `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	Status         EnrollmentStatus       `bson:"status" json:"status"`
	ModuleProgress map[string]ModuleState `bson:"moduleProgress,omitempty" json:"moduleProgress"`
	Source         string                 `bson:"source,omitempty" json:"source,omitempty"` // auto-enroll, first-access
	EnrolledAt     time.Time              `bson:"enrolledAt" json:"enrolledAt"`
	StartedAt      *time.Time             `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt    *time.Time             `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	LastAccessedAt *time.Time             `bson:"lastAccessedAt,omitempty" json:"lastAccessedAt,omitempty"`
	AccessCount    int                    `bson:"accessCount" json:"accessCount"`
	XPEarned       int                    `bson:"xpEarned" json:"xpEarned"`
	CreatedAt      time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// Enrollment sources
const (
	SourceAutoEnroll  = "auto-enroll"
	SourceFirstAccess = "first-access"
)

// EnrollmentID returns the deterministic document key for a (campaign, user) pair
func EnrollmentID(campaignID, userID string) string {
	return campaignID + "_" + userID
}

// Module returns the progress for an item, zero value when absent
func (e *Enrollment) Module(itemID string) ModuleState {
	if e == nil || e.ModuleProgress == nil {
		return ModuleState{}
	}
	return e.ModuleProgress[itemID]
}

// CountCompletedModules counts how many of the given items are complete
func (e *Enrollment) CountCompletedModules(items []CampaignItem) int {
	completed := 0
	for _, item := range items {
		if e.Module(item.ItemID).IsComplete() {
			completed++
		}
	}
	return completed
}

// HasProgress reports whether any module has been touched
func (e *Enrollment) HasProgress() bool {
	for _, state := range e.ModuleProgress {
		if state.VideoFinished || state.QuestionsAnswered > 0 || state.WatchedDuration > 0 {
			return true
		}
	}
	return false
}
