package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with the given role
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string, role string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token in repository
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token if it exists in the database
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token as used
	// If the token is already used, must not overwrite the existing 'usedAt'
	// and has to return apperrors.ErrRefreshTokenIsUsed
	MarkUsed(ctx context.Context, tokenString string) (usedAt time.Time, err error)
}

// Balance repository interface
// All mutations are atomic increments guarded in SQL, so concurrent
// operations on the same user's balance can't lose updates or drive
// a wallet negative.
type BalanceRepo interface {
	// Create zero balance for user
	CreateBalance(ctx context.Context, userID uuid.UUID) error

	// Get user balance. forUpdate locks the row until the surrounding
	// transaction ends, serializing same-user mutations.
	// If user has no balance must return apperrors.ErrUserNotFound
	GetBalance(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Balance, error)

	// Add delta (possibly negative) to the points wallet
	// Must return apperrors.ErrBalanceInsufficient if the result would be negative
	AddPoints(ctx context.Context, userID uuid.UUID, delta int64) (models.Balance, error)

	// Add delta (possibly negative) to the currency wallet
	// Must return apperrors.ErrBalanceInsufficient if the result would be negative
	AddCurrency(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Balance, error)

	// Apply deltas to both wallets in one statement (conversions)
	// Must return apperrors.ErrBalanceInsufficient if either result would be negative
	Exchange(ctx context.Context, userID uuid.UUID, pointsDelta int64, currencyDelta decimal.Decimal) (models.Balance, error)
}

// Spin repository interface
type SpinRepo interface {
	// Append an immutable spin record
	CreateSpin(ctx context.Context, spin models.Spin) (models.Spin, error)

	// Count user's spins created at or after the given moment
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// List user's spins, most recent first
	ListSpins(ctx context.Context, userID uuid.UUID, limit int) ([]models.Spin, error)

	// Read the kill-switch state (the single control row)
	GetControl(ctx context.Context) (models.SpinControl, error)

	// Overwrite the kill-switch state
	SetControl(ctx context.Context, control models.SpinControl) (models.SpinControl, error)
}

// Withdrawal repository interface
type WithdrawalRepo interface {
	// Persist a new withdrawal as is
	CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error)

	// Get withdrawal by id. forUpdate locks the row.
	// If not found must return apperrors.ErrWithdrawalNotFound
	GetWithdrawal(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Withdrawal, error)

	// Transition pending → verified
	// Must return apperrors.ErrWithdrawalNotPending if status is not pending
	SetVerified(ctx context.Context, id uuid.UUID, verifiedAt time.Time, adminID uuid.UUID) (models.Withdrawal, error)

	// Transition pending → rejected
	// Must return apperrors.ErrWithdrawalNotPending if status is not pending
	SetRejected(ctx context.Context, id uuid.UUID, note string) (models.Withdrawal, error)

	// Remove the record entirely
	DeleteWithdrawal(ctx context.Context, id uuid.UUID) error

	// List user's withdrawals, most recent first
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)

	// List all withdrawals, most recent first
	ListAll(ctx context.Context) ([]models.Withdrawal, error)

	// Sum of pending amounts with requested_at >= since
	SumPendingSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error)

	// Sum of verified amounts with verified_at >= since
	SumVerifiedSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error)

	// Earliest verified_at within the window, nil when none
	EarliestVerifiedSince(ctx context.Context, userID uuid.UUID, since time.Time) (*time.Time, error)

	// Earliest timestamp still counted against the cap: requested_at of
	// pending records and verified_at of verified ones, within the window.
	// Returns nil when nothing contributes.
	EarliestContributing(ctx context.Context, userID uuid.UUID, since time.Time) (*time.Time, error)
}

// Storage aggregates all repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Balance() BalanceRepo
	Spin() SpinRepo
	Withdrawal() WithdrawalRepo

	// Run fn within a database transaction
	// The storage passed to fn operates on the transaction connection
	InTx(ctx context.Context, fn func(Storage) error) error
}
