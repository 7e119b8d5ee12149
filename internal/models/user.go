package models

import "time"

// Role represents the role carried in admin tokens.
type Role string

const (
	RoleAdmin Role = "admin"
)

// User is a workshop customer. Access is granted by a captured payment.
type User struct {
	ID              string     `json:"id"`
	Email           *string    `json:"email,omitempty"`
	FullName        string     `json:"full_name"`
	HasAccess       bool       `json:"has_access"`
	AccessGrantedAt *time.Time `json:"access_granted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
