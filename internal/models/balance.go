package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance keeps both wallets of a user: game points (integer precision)
// and withdrawable currency (fixed point, 6 decimal places in storage).
// Both are never negative. PointsResetAt marks when the points wallet
// last started a fresh cycle; creation counts as the first reset.
type Balance struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Points        int64
	Currency      decimal.Decimal
	PointsResetAt time.Time
}
