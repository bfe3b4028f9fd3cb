package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
)

type BalanceRepo struct {
	DB DBTX
}

const balanceColumns = "id, user_id, points, currency, points_reset_at"

const createBalance = `-- name: CreateBalance
INSERT INTO balances (user_id, points, currency)
VALUES ($1, 0, 0)
RETURNING id
`

func (r *BalanceRepo) CreateBalance(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, createBalance, userID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("user balance already exists: %w", err)
		}

		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const getBalance = `-- name: GetBalance
SELECT ` + balanceColumns + ` FROM balances
WHERE user_id = $1
`

func (r *BalanceRepo) GetBalance(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Balance, error) {
	query := getBalance
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	rows, _ := r.DB.Query(ctx, query, userID)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

// Guarded increment: the WHERE clause rejects updates that would leave
// the wallet negative, so no separate read is needed to stay safe under
// concurrency.
const addPoints = `-- name: AddPoints
UPDATE balances
SET points = points + $2
WHERE user_id = $1 AND points + $2 >= 0
RETURNING ` + balanceColumns + `
`

func (r *BalanceRepo) AddPoints(ctx context.Context, userID uuid.UUID, delta int64) (models.Balance, error) {
	rows, _ := r.DB.Query(ctx, addPoints, userID, delta)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return r.explainMissingRow(ctx, userID)
	}
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

const addCurrency = `-- name: AddCurrency
UPDATE balances
SET currency = currency + $2
WHERE user_id = $1 AND currency + $2 >= 0
RETURNING ` + balanceColumns + `
`

func (r *BalanceRepo) AddCurrency(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Balance, error) {
	rows, _ := r.DB.Query(ctx, addCurrency, userID, delta)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return r.explainMissingRow(ctx, userID)
	}
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

const exchange = `-- name: Exchange
UPDATE balances
SET points = points + $2, currency = currency + $3
WHERE user_id = $1 AND points + $2 >= 0 AND currency + $3 >= 0
RETURNING ` + balanceColumns + `
`

func (r *BalanceRepo) Exchange(ctx context.Context, userID uuid.UUID, pointsDelta int64, currencyDelta decimal.Decimal) (models.Balance, error) {
	rows, _ := r.DB.Query(ctx, exchange, userID, pointsDelta, currencyDelta)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return r.explainMissingRow(ctx, userID)
	}
	if err != nil {
		return balance, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

// A guarded update that matched no row means either the balance does
// not exist or the guard refused the mutation. Tell those apart.
func (r *BalanceRepo) explainMissingRow(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	balance, err := r.GetBalance(ctx, userID, false)
	if err != nil {
		return balance, err
	}
	return balance, apperrors.ErrBalanceInsufficient
}

func rowToBalance(row pgx.CollectableRow) (models.Balance, error) {
	var b models.Balance
	err := row.Scan(&b.ID, &b.UserID, &b.Points, &b.Currency, &b.PointsResetAt)
	return b, err
}
