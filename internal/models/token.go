package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a single-use opaque token persisted server side.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

func (t RefreshToken) Used() bool {
	return t.UsedAt != nil
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair holds the access JWT and refresh token issued together.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
