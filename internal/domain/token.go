package domain

import "time"

// CanvasToken persists one Canvas OAuth2 grant per owner.
//
// The record is created on a successful authorization_code exchange and
// mutated in place on every refresh_token exchange; AccessToken and
// ExpiresAt are the only fields a refresh overwrites. The owner ID is an
// opaque key supplied by the upstream identity layer, one token per owner.
type CanvasToken struct {
	ID           int64
	OwnerID      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token expires within delta of
// now. A zero delta matches only tokens that are already expired.
func (t CanvasToken) ExpiresWithin(delta time.Duration, now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.Sub(now) <= delta
}
