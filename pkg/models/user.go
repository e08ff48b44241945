package models

import (
	"fmt"
	"time"
)

// UserRole is the coarse permission level stamped onto a user row and
// into their tokens.
type UserRole string

const (
	// RoleUser is the default; users see only their own files and jobs.
	RoleUser UserRole = "user"
	// RoleAdmin marks operator accounts created through the user CLI.
	RoleAdmin UserRole = "admin"
)

// IsValid reports whether the role is one of the defined roles.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an authentication principal. Files and jobs are scoped to their
// owning user; the REST surface resolves bearer tokens to a user id.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         string     `gorm:"default:user;size:50" json:"role"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate rejects users without an email and users with a role outside
// the defined set. An empty role is fine; the column default fills it.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}
