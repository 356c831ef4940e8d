package domain

import (
	"net/mail"
	"strings"
)

// ErrInvalidRecord reports a record rejected on create.
var ErrInvalidRecord = &Error{Kind: KindInvalidArgument, Message: "invalid record"}

// ValidateNew checks the attributes a new user must carry: first and last
// name, a parseable email address and a known role.
func (r Record) ValidateNew() error {
	if r.ID < 0 {
		return ErrInvalidRecord.With("id must be positive")
	}
	for field, v := range map[string]*string{FieldFirstName: r.FirstName, FieldLastName: r.LastName} {
		if v == nil || strings.TrimSpace(*v) == "" {
			return ErrInvalidRecord.With("%s is required", field)
		}
	}
	if r.Email == nil {
		return ErrInvalidRecord.With("email is required")
	}
	if _, err := mail.ParseAddress(*r.Email); err != nil {
		return ErrInvalidRecord.With("email %q is not valid", *r.Email)
	}
	if r.Role == nil || (*r.Role != RoleAttendee && *r.Role != RoleHost) {
		return ErrInvalidRecord.With("role must be %q or %q", RoleAttendee, RoleHost)
	}
	for field, v := range map[string]*int64{FieldEventsHosted: r.EventsHosted, FieldEventsAttended: r.EventsAttended} {
		if v != nil && *v < 0 {
			return ErrInvalidRecord.With("%s must not be negative", field)
		}
	}
	return nil
}
