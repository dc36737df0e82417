package models

import (
	"time"
)

// User represents an employee known to the identity provider
type User struct {
	ID             string    `bson:"_id" json:"id"`
	Email          string    `bson:"email" json:"email"`
	DisplayName    string    `bson:"displayName" json:"displayName"`
	OrganizationID string    `bson:"organizationId" json:"organizationId"`
	Department     string    `bson:"department,omitempty" json:"department,omitempty"`
	EmployeeID     string    `bson:"employeeId,omitempty" json:"employeeId,omitempty"`
	CohortIDs      []string  `bson:"cohortIds,omitempty" json:"cohortIds,omitempty"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Name returns the display name, falling back to the email address
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
