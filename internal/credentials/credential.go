// Package credentials persists per-user QuickBooks OAuth credentials.
package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user has never connected.
var ErrNotFound = errors.New("credentials: not found")

// Credential is the OAuth grant held for one user.
type Credential struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	RealmID          string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Connected        bool
	UpdatedAt        time.Time
}

// Fresh reports whether the access token is still usable at now, treating
// tokens that expire within margin as already expired.
func (c Credential) Fresh(now time.Time, margin time.Duration) bool {
	return c.AccessToken != "" && c.ExpiresAt.After(now.Add(margin))
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	AccessToken      *string
	RefreshToken     *string
	RealmID          *string
	ExpiresAt        *time.Time
	RefreshExpiresAt *time.Time
	Connected        *bool
}

// Apply returns c with the patch applied.
func (p Patch) Apply(c Credential) Credential {
	if p.AccessToken != nil {
		c.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil {
		c.RefreshToken = *p.RefreshToken
	}
	if p.RealmID != nil {
		c.RealmID = *p.RealmID
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt.UTC()
	}
	if p.RefreshExpiresAt != nil {
		c.RefreshExpiresAt = p.RefreshExpiresAt.UTC()
	}
	if p.Connected != nil {
		c.Connected = *p.Connected
	}
	return c
}

// Store is the persistence boundary for credentials. Implementations need not
// serialise concurrent saves for one user; the token manager does that.
type Store interface {
	Get(ctx context.Context, userID string) (Credential, error)
	Save(ctx context.Context, userID string, patch Patch) (Credential, error)
	// ListRefreshExpiring returns connected credentials whose refresh token
	// expires before the given instant.
	ListRefreshExpiring(ctx context.Context, before time.Time) ([]Credential, error)
}
