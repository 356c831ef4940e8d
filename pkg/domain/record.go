package domain

import (
	"fmt"
	"strconv"
)

// Field names of a user record as stored.
const (
	FieldID             = "id"
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldEmail          = "email"
	FieldPhoneNumber    = "phone_number"
	FieldAvatar         = "avatar"
	FieldGender         = "gender"
	FieldJobTitle       = "job_title"
	FieldCompany        = "company"
	FieldCity           = "city"
	FieldState          = "state"
	FieldRole           = "role"
	FieldEventsHosted   = "events_hosted"
	FieldEventsAttended = "events_attended"
)

// Role values accepted for Record.Role.
const (
	RoleAttendee = "attendee"
	RoleHost     = "host"
)

// Record is a user record. The store does not enforce a schema, so every
// attribute except ID is optional.
type Record struct {
	ID             int64   `json:"id" msgpack:"id" dynamodbav:"id"`
	FirstName      *string `json:"first_name,omitempty" msgpack:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty" msgpack:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	Email          *string `json:"email,omitempty" msgpack:"email,omitempty" dynamodbav:"email,omitempty"`
	PhoneNumber    *string `json:"phone_number,omitempty" msgpack:"phone_number,omitempty" dynamodbav:"phone_number,omitempty"`
	Avatar         *string `json:"avatar,omitempty" msgpack:"avatar,omitempty" dynamodbav:"avatar,omitempty"`
	Gender         *string `json:"gender,omitempty" msgpack:"gender,omitempty" dynamodbav:"gender,omitempty"`
	JobTitle       *string `json:"job_title,omitempty" msgpack:"job_title,omitempty" dynamodbav:"job_title,omitempty"`
	Company        *string `json:"company,omitempty" msgpack:"company,omitempty" dynamodbav:"company,omitempty"`
	City           *string `json:"city,omitempty" msgpack:"city,omitempty" dynamodbav:"city,omitempty"`
	State          *string `json:"state,omitempty" msgpack:"state,omitempty" dynamodbav:"state,omitempty"`
	Role           *string `json:"role,omitempty" msgpack:"role,omitempty" dynamodbav:"role,omitempty"`
	EventsHosted   *int64  `json:"events_hosted,omitempty" msgpack:"events_hosted,omitempty" dynamodbav:"events_hosted,omitempty"`
	EventsAttended *int64  `json:"events_attended,omitempty" msgpack:"events_attended,omitempty" dynamodbav:"events_attended,omitempty"`
}

// Value returns the named attribute as a typed scalar. ok is false when the
// field is unknown or absent on this record.
func (r Record) Value(field string) (Value, bool) {
	switch field {
	case FieldID:
		return IntValue(r.ID), true
	case FieldFirstName:
		return stringField(r.FirstName)
	case FieldLastName:
		return stringField(r.LastName)
	case FieldEmail:
		return stringField(r.Email)
	case FieldPhoneNumber:
		return stringField(r.PhoneNumber)
	case FieldAvatar:
		return stringField(r.Avatar)
	case FieldGender:
		return stringField(r.Gender)
	case FieldJobTitle:
		return stringField(r.JobTitle)
	case FieldCompany:
		return stringField(r.Company)
	case FieldCity:
		return stringField(r.City)
	case FieldState:
		return stringField(r.State)
	case FieldRole:
		return stringField(r.Role)
	case FieldEventsHosted:
		return intField(r.EventsHosted)
	case FieldEventsAttended:
		return intField(r.EventsAttended)
	default:
		return Value{}, false
	}
}

func stringField(p *string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	return StringValue(*p), true
}

func intField(p *int64) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	return IntValue(*p), true
}

// ValueKind is the scalar type carried by a Value.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindInteger
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	default:
		return "unknown"
	}
}

// Value is a scalar attribute value.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
}

// StringValue wraps s.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// IntValue wraps n.
func IntValue(n int64) Value {
	return Value{Kind: KindInteger, Int: n}
}

// String renders the value the way it appears in cursors and query strings.
func (v Value) String() string {
	if v.Kind == KindInteger {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Interface returns the underlying Go value (string or int64).
func (v Value) Interface() interface{} {
	if v.Kind == KindInteger {
		return v.Int
	}
	return v.Str
}

// Compare orders two values of the same kind. Values of different kinds are
// not comparable.
func (v Value) Compare(other Value) (int, error) {
	if v.Kind != other.Kind {
		return 0, fmt.Errorf("cannot compare %s with %s", v.Kind, other.Kind)
	}
	switch v.Kind {
	case KindString:
		switch {
		case v.Str < other.Str:
			return -1, nil
		case v.Str > other.Str:
			return 1, nil
		}
		return 0, nil
	case KindInteger:
		switch {
		case v.Int < other.Int:
			return -1, nil
		case v.Int > other.Int:
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot compare values of kind %s", v.Kind)
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(other Value) bool {
	c, err := v.Compare(other)
	return err == nil && c == 0
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to n.
func Int64Ptr(n int64) *int64 {
	return &n
}

// Merge overwrites the attributes of r that patch sets. ID is left alone.
func (r *Record) Merge(patch Record) {
	for _, pair := range [][2]**string{
		{&r.FirstName, &patch.FirstName},
		{&r.LastName, &patch.LastName},
		{&r.Email, &patch.Email},
		{&r.PhoneNumber, &patch.PhoneNumber},
		{&r.Avatar, &patch.Avatar},
		{&r.Gender, &patch.Gender},
		{&r.JobTitle, &patch.JobTitle},
		{&r.Company, &patch.Company},
		{&r.City, &patch.City},
		{&r.State, &patch.State},
		{&r.Role, &patch.Role},
	} {
		if *pair[1] != nil {
			*pair[0] = *pair[1]
		}
	}
	if patch.EventsHosted != nil {
		r.EventsHosted = patch.EventsHosted
	}
	if patch.EventsAttended != nil {
		r.EventsAttended = patch.EventsAttended
	}
}
