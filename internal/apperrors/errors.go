package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrNoItems is returned when a campaign has no modules to play
	ErrNoItems = errors.New("campaign has no items")
	// ErrNotPublished is returned when a learner opens an unpublished campaign
	ErrNotPublished = errors.New("campaign is not published")
	// ErrAlreadyAnswered is returned when a question response already exists
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrUnknownQuestion is returned when an answer references a question the video does not have
	ErrUnknownQuestion = errors.New("question does not belong to video")
	// ErrNotRequeueable is returned when a notification cannot move back to pending
	ErrNotRequeueable = errors.New("notification cannot be requeued")
	// ErrUnknownJob is returned for job names that are not registered
	ErrUnknownJob = errors.New("unknown job")
	// ErrUnknownItem is returned when progress references an item the campaign does not have
	ErrUnknownItem = errors.New("item does not belong to campaign")
	// ErrInvalidOption is returned when a choice answer names an option the question does not offer
	ErrInvalidOption = errors.New("option does not belong to question")
	// ErrNotInAudience is returned when a user outside the campaign audience tries to enroll on first access
	ErrNotInAudience = errors.New("user is not in the campaign audience")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate key")
)

// NotFoundError reports a missing document of a given kind
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFound creates a NotFoundError
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is any NotFoundError
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
