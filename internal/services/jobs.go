package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/learnloop/campaign-engine/internal/apperrors"
)

// Scheduled job names
const (
	JobProcessNotifications = "process-notifications"
	JobSendReminders        = "send-reminders"
	JobCreateInstances      = "create-instances"
)

// JobFunc is one automation run
type JobFunc func(ctx context.Context) *RunReport

// Jobs maps job names to their runs. The scheduler, the admin API and
// campaignctl all run jobs through it.
type Jobs struct {
	jobs map[string]JobFunc
}

// NewJobs registers the three scheduled jobs
func NewJobs(notifications NotificationService, reminders ReminderService, recurring RecurringService) *Jobs {
	return &Jobs{jobs: map[string]JobFunc{
		JobProcessNotifications: notifications.ProcessQueue,
		JobSendReminders:        reminders.RunReminders,
		JobCreateInstances:      recurring.RunInstancer,
	}}
}

// Run runs the named job once
func (j *Jobs) Run(ctx context.Context, name string) (*RunReport, error) {
	job, ok := j.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, apperrors.ErrUnknownJob)
	}
	return job(ctx), nil
}

// Get returns the named job
func (j *Jobs) Get(name string) (JobFunc, bool) {
	job, ok := j.jobs[name]
	return job, ok
}

// Names returns the registered job names in sorted order
func (j *Jobs) Names() []string {
	names := make([]string, 0, len(j.jobs))
	for name := range j.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
