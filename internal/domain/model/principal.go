package model

import "time"

// Principal is an owner of API keys, provisioned on first login.
type Principal struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthenticatedKey is what a successful key validation yields for downstream handlers.
type AuthenticatedKey struct {
	KeyID     string
	OwnerID   string
	ExpiresAt time.Time
}

// RateLimitPrincipal is the identity the limiter counts against. All keys of
// one owner share a window.
func (a AuthenticatedKey) RateLimitPrincipal() string {
	return "user:" + a.OwnerID
}
