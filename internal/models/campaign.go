package models

import (
	"sort"
	"time"
)

// Default rate-limit values applied when a campaign's automation config leaves them unset
const (
	DefaultMaxReminders          = 3
	DefaultReminderFrequencyDays = 3
)

// ScheduleFrequency is how often a recurring campaign produces a new instance
type ScheduleFrequency string

const (
	FrequencyOnce      ScheduleFrequency = "once"
	FrequencyWeekly    ScheduleFrequency = "weekly"
	FrequencyMonthly   ScheduleFrequency = "monthly"
	FrequencyQuarterly ScheduleFrequency = "quarterly"
)

// IsRecurring reports whether the frequency produces more than one instance
func (f ScheduleFrequency) IsRecurring() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	default:
		return false
	}
}

// CampaignItem places one video module at a position in the campaign
type CampaignItem struct {
	ItemID  string `bson:"itemId" json:"itemId"`
	VideoID string `bson:"videoId" json:"videoId"`
	Order   int    `bson:"order" json:"order"`
}

// AutomationConfig controls which notifications the automation engine produces for a campaign
type AutomationConfig struct {
	AutoSendInvites       bool `bson:"autoSendInvites" json:"autoSendInvites"`
	SendReminders         bool `bson:"sendReminders" json:"sendReminders"`
	MaxReminders          int  `bson:"maxReminders" json:"maxReminders"`
	ReminderFrequencyDays int  `bson:"reminderFrequencyDays" json:"reminderFrequencyDays"`
	SendConfirmations     bool `bson:"sendConfirmations" json:"sendConfirmations"`
}

// EffectiveMaxReminders returns MaxReminders or the default when unset
func (a *AutomationConfig) EffectiveMaxReminders() int {
	if a == nil || a.MaxReminders <= 0 {
		return DefaultMaxReminders
	}
	return a.MaxReminders
}

// EffectiveReminderFrequencyDays returns ReminderFrequencyDays or the default when unset
func (a *AutomationConfig) EffectiveReminderFrequencyDays() int {
	if a == nil || a.ReminderFrequencyDays <= 0 {
		return DefaultReminderFrequencyDays
	}
	return a.ReminderFrequencyDays
}

// CampaignSchedule describes when a campaign starts and whether it recurs
type CampaignSchedule struct {
	Frequency ScheduleFrequency `bson:"frequency" json:"frequency"`
	StartDate time.Time         `bson:"startDate" json:"startDate"`
}

// CampaignMetadata holds authoring flags
type CampaignMetadata struct {
	IsPublished bool   `bson:"isPublished" json:"isPublished"`
	CreatedBy   string `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
}

// CampaignStats is the per-status enrollment aggregate stored on a campaign
type CampaignStats struct {
	TotalEnrollments int `bson:"totalEnrollments" json:"totalEnrollments"`
	NotStartedCount  int `bson:"notStartedCount" json:"notStartedCount"`
	InProgressCount  int `bson:"inProgressCount" json:"inProgressCount"`
	CompletedCount   int `bson:"completedCount" json:"completedCount"`
}

// Consistent reports whether the per-status counts add up to the total
func (s CampaignStats) Consistent() bool {
	return s.CompletedCount+s.InProgressCount+s.NotStartedCount == s.TotalEnrollments
}

// StatsFromCounts builds campaign stats from enrollment counts keyed by status
func StatsFromCounts(counts map[EnrollmentStatus]int) CampaignStats {
	stats := CampaignStats{
		NotStartedCount: counts[StatusNotStarted],
		InProgressCount: counts[StatusInProgress],
		CompletedCount:  counts[StatusCompleted],
	}
	stats.TotalEnrollments = stats.NotStartedCount + stats.InProgressCount + stats.CompletedCount
	return stats
}

// Campaign represents a published sequence of video modules assigned to learners
type Campaign struct {
	ID                   string            `bson:"_id" json:"id"`
	Title                string            `bson:"title" json:"title"`
	Description          string            `bson:"description,omitempty" json:"description,omitempty"`
	Items                []CampaignItem    `bson:"items" json:"items"`
	AllowedOrganizations []string          `bson:"allowedOrganizations" json:"allowedOrganizations"`
	AllowedDepartments   []string          `bson:"allowedDepartments,omitempty" json:"allowedDepartments,omitempty"`
	AllowedEmployeeIDs   []string          `bson:"allowedEmployeeIds,omitempty" json:"allowedEmployeeIds,omitempty"`
	AllowedCohortIDs     []string          `bson:"allowedCohortIds,omitempty" json:"allowedCohortIds,omitempty"`
	Automation           *AutomationConfig `bson:"automation,omitempty" json:"automation,omitempty"`
	Schedule             *CampaignSchedule `bson:"schedule,omitempty" json:"schedule,omitempty"`
	Metadata             CampaignMetadata  `bson:"metadata" json:"metadata"`
	Stats                CampaignStats     `bson:"stats" json:"stats"`
	CreatedAt            time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// SortedItems returns a copy of the campaign items ordered by Order
func (c *Campaign) SortedItems() []CampaignItem {
	items := make([]CampaignItem, len(c.Items))
	copy(items, c.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return items
}

// PrimaryOrganization returns the first allowed organization, or "" when none is set
func (c *Campaign) PrimaryOrganization() string {
	if len(c.AllowedOrganizations) == 0 {
		return ""
	}
	return c.AllowedOrganizations[0]
}

// HasGranularFilters reports whether any department, employee or cohort filter is defined
func (c *Campaign) HasGranularFilters() bool {
	return len(c.AllowedDepartments) > 0 || len(c.AllowedEmployeeIDs) > 0 || len(c.AllowedCohortIDs) > 0
}

// IsRecurring reports whether the campaign schedule produces instances
func (c *Campaign) IsRecurring() bool {
	return c.Schedule != nil && c.Schedule.Frequency.IsRecurring()
}
