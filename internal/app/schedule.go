package app

import (
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/scheduler"
	"github.com/learnloop/campaign-engine/internal/services"
)

// JobSchedules maps each job to its configured cron spec
func JobSchedules(cfg *config.Config) map[string]string {
	return map[string]string{
		services.JobProcessNotifications: cfg.Automation.ProcessorCron,
		services.JobSendReminders:        cfg.Automation.ReminderCron,
		services.JobCreateInstances:      cfg.Automation.InstancerCron,
	}
}

// NewScheduler registers every job on a scheduler in the configured timezone
func NewScheduler(cfg *config.Config, jobs *services.Jobs) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(cfg.Automation.Timezone, scheduler.DefaultRunTimeout)
	if err != nil {
		return nil, err
	}
	schedules := JobSchedules(cfg)
	for _, name := range jobs.Names() {
		job, _ := jobs.Get(name)
		if err := s.Register(name, schedules[name], job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
