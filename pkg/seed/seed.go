// Package seed holds the reference users loaded into a fresh deployment.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// Writer is the store capability Load needs.
type Writer interface {
	Put(ctx context.Context, rec domain.Record) error
}

func user(id int64, first, last, role, company, title, city, state string, hosted, attended int64) domain.Record {
	return domain.Record{
		ID:             id,
		FirstName:      domain.StringPtr(first),
		LastName:       domain.StringPtr(last),
		Email:          domain.StringPtr(fmt.Sprintf("%s@example.com", strings.ToLower(first))),
		Role:           domain.StringPtr(role),
		Company:        domain.StringPtr(company),
		JobTitle:       domain.StringPtr(title),
		City:           domain.StringPtr(city),
		State:          domain.StringPtr(state),
		EventsHosted:   domain.Int64Ptr(hosted),
		EventsAttended: domain.Int64Ptr(attended),
	}
}

// Users returns the ten reference users. Each call returns fresh copies.
func Users() []domain.Record {
	return []domain.Record{
		user(1, "Alice", "Smith", domain.RoleAttendee, "Acme Corp", "Engineer", "New York", "NY", 2, 5),
		user(2, "Bob", "Johnson", domain.RoleHost, "Beta LLC", "Manager", "San Francisco", "CA", 3, 2),
		user(3, "Carol", "Williams", domain.RoleAttendee, "Acme Corp", "Designer", "Boston", "MA", 0, 7),
		user(4, "David", "Brown", domain.RoleHost, "Delta Inc", "Engineer", "Austin", "TX", 1, 4),
		user(5, "Eve", "Davis", domain.RoleAttendee, "Beta LLC", "Manager", "Seattle", "WA", 0, 3),
		user(6, "Frank", "Miller", domain.RoleAttendee, "Gamma Co", "Engineer", "Denver", "CO", 0, 1),
		user(7, "Grace", "Wilson", domain.RoleHost, "Acme Corp", "Manager", "Chicago", "IL", 2, 6),
		user(8, "Hank", "Moore", domain.RoleAttendee, "Delta Inc", "Designer", "Miami", "FL", 0, 2),
		user(9, "Ivy", "Taylor", domain.RoleAttendee, "Gamma Co", "Engineer", "Portland", "OR", 0, 4),
		user(10, "Jack", "Anderson", domain.RoleHost, "Acme Corp", "Designer", "Dallas", "TX", 1, 5),
	}
}

// Load writes the reference users to w, replacing records with the same ids.
func Load(ctx context.Context, w Writer) (int, error) {
	users := Users()
	for i, rec := range users {
		if err := w.Put(ctx, rec); err != nil {
			return i, fmt.Errorf("failed to seed user %d: %w", rec.ID, err)
		}
	}
	return len(users), nil
}
