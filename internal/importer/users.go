// Package importer loads the user directory from CSV exports.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/learnloop/campaign-engine/internal/models"
	"golang.org/x/exp/slog"
)

// Required CSV columns. Optional: displayName, department, employeeId, cohortIds.
var requiredColumns = []string{"id", "email", "organizationId"}

// UserStore is the write side the importer needs
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) (bool, error)
}

// Result counts an import run
type Result struct {
	Created int
	Updated int
	Skipped int
	Errors  []string
}

// ParseUsers reads a header-led CSV of users. Rows that cannot be used are
// reported with their line number and skipped. cohortIds is ';' separated.
func ParseUsers(r io.Reader) ([]*models.User, []error, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("CSV file is empty")
		}
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("CSV header is missing column %q", name)
		}
	}

	validate := validator.New()
	var users []*models.User
	var rowErrs []error
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		user := &models.User{
			ID:             field("id"),
			Email:          field("email"),
			DisplayName:    field("displayName"),
			OrganizationID: field("organizationId"),
			Department:     field("department"),
			EmployeeID:     field("employeeId"),
			CohortIDs:      splitList(field("cohortIds")),
		}
		if user.ID == "" || user.OrganizationID == "" {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: id and organizationId are required", line))
			continue
		}
		if err := validate.Var(user.Email, "required,email"); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid email %q", line, user.Email))
			continue
		}
		users = append(users, user)
	}
	return users, rowErrs, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Import upserts users one by one; a failed write is counted and the import continues
func Import(ctx context.Context, store UserStore, users []*models.User) Result {
	var result Result
	for _, user := range users {
		created, err := store.Upsert(ctx, user)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: %v", user.ID, err))
			slog.Warn("failed to import user", "userId", user.ID, "error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result
}
