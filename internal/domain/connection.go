package domain

import (
	"time"
)

// ConnectionStatus represents the lifecycle state of a ServiceConnection
type ConnectionStatus string

const (
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionExpired   ConnectionStatus = "expired"
	ConnectionRevoked   ConnectionStatus = "revoked"
)

// ServiceConnection represents one linked third-party account.
// Exactly one connection exists per (user, provider); reconnecting
// overwrites the stored token set in place.
type ServiceConnection struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Provider     string           `json:"provider"`
	AccessToken  string           `json:"access_token"`
	RefreshToken *string          `json:"refresh_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Scopes       []string         `json:"scopes"`
	Status       ConnectionStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// EffectiveStatus computes the connection status lazily against the given
// clock. A stored Connected status with a past expiry reads as Expired;
// expiry is never advanced by a background timer.
func (c *ServiceConnection) EffectiveStatus(now time.Time) ConnectionStatus {
	if c.Status == ConnectionConnected && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
		return ConnectionExpired
	}
	return c.Status
}

// IsConnected reports whether the connection is usable right now.
func (c *ServiceConnection) IsConnected(now time.Time) bool {
	return c.EffectiveStatus(now) == ConnectionConnected
}

// TokenSet is the OAuth credential bundle returned by a provider.
// It is always stored whole; a refresh that returns no new refresh token
// keeps the previous one.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes"`
}
