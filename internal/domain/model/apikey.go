// Package model defines the value types shared across the forecast services.
package model

import "time"

// APIKey is a persisted caller credential. The secret itself is never stored;
// KeyHash is a digest of it and KeySuffix is its trailing display portion.
type APIKey struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	KeyHash   string     `json:"-"`
	KeySuffix string     `json:"key_suffix"`
	Name      string     `json:"name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// IsExpired reports whether the key has passed its expiry at now.
// It does not consult IsActive.
func (k APIKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// Authenticates reports whether the key may be used at now given its owner's state.
func (k APIKey) Authenticates(now time.Time, ownerActive bool) bool {
	return k.IsActive && !k.IsExpired(now) && ownerActive
}

// KeyRecord is the joined key and owner state returned by a single lookup.
type KeyRecord struct {
	Key         APIKey
	OwnerActive bool
	OwnerEmail  string
}

// CreateAPIKeyRequest describes a new key row.
type CreateAPIKeyRequest struct {
	OwnerID   string
	KeyHash   string
	KeySuffix string
	Name      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IssuedAPIKey is returned once on creation. Secret is never shown again.
type IssuedAPIKey struct {
	Secret    string        `json:"api_key"`
	Key       APIKey        `json:"key"`
	RateLimit RateLimitInfo `json:"rate_limit"`
}

// RateLimitInfo tells callers how the gate treats their key.
type RateLimitInfo struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// KeyStatus is the self-service view of the calling key.
type KeyStatus struct {
	Active            bool      `json:"active"`
	ExpiresAt         time.Time `json:"expires_at"`
	RemainingRequests int       `json:"remaining_requests"`
	MaxRequests       int       `json:"max_requests"`
	ResetIn           int       `json:"reset_in"`
}
