package entity

import (
	"time"
)

// Placeholder values written at signup for the unfinished verification flow.
// Nothing reads them back.
const (
	PlaceholderOTPCode   = 123456
	PlaceholderOTPExpiry = "test-date"
)

// User is the aggregate root of the directory.
// PasswordHash holds a bcrypt hash and must never leave the service.
//
// PositionSeniorityIndex is nil for accounts that have not been placed in the
// org chart yet; lower values are more senior.
type User struct {
	ID                     string
	Email                  string
	PasswordHash           string
	FirstName              string
	LastName               string
	Phone                  string
	Position               string
	PositionSeniorityIndex *int
	FirstLogin             bool
	OTPCode                int
	OTPExpiry              string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Username is the display identity shown to other users.
func (u *User) Username() string {
	return u.Email
}

// VisibleTo reports whether a caller ranked at callerSeniority may see u.
func (u *User) VisibleTo(callerSeniority int) bool {
	return u.PositionSeniorityIndex != nil && *u.PositionSeniorityIndex <= callerSeniority
}
