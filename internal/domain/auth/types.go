// Package auth holds the login identity, role and session types for key owners.
package auth

import "time"

// Role is the application role derived from IdP groups.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Identity is what an IdP returns after a completed login.
type Identity struct {
	Subject   string
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// Session is the server-side record of a logged-in owner.
// OwnerID is the provisioned principal that API keys are issued to.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	OwnerID   string    `json:"owner_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// CanManageKeys reports whether the session may create and revoke its own keys.
func (s Session) CanManageKeys() bool { return s.OwnerID != "" && s.Role != RoleGuest }

// IsAdmin reports whether the session may read operational endpoints.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }
