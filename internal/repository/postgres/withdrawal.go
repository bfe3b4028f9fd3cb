package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
)

type WithdrawalRepo struct {
	DB DBTX
}

const withdrawalColumns = "id, user_id, amount, contact, status, requested_at, verified_at, verified_by, note"

const createWithdrawal = `-- name: CreateWithdrawal
INSERT INTO withdrawals (id, user_id, amount, contact, status, requested_at, verified_at, verified_by, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + withdrawalColumns

func (r *WithdrawalRepo) CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = models.WithdrawalStatusPending
	}
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createWithdrawal,
		w.ID, w.UserID, w.Amount, w.Contact, w.Status, w.RequestedAt, w.VerifiedAt, w.VerifiedBy, w.Note)
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

const getWithdrawal = `-- name: GetWithdrawal
SELECT ` + withdrawalColumns + ` FROM withdrawals
WHERE id = $1
`

func (r *WithdrawalRepo) GetWithdrawal(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Withdrawal, error) {
	query := getWithdrawal
	if forUpdate {
		query += "FOR UPDATE\n"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	switch {
	case err == nil:
		return w, nil
	case errors.Is(err, pgx.ErrNoRows):
		return w, apperrors.ErrWithdrawalNotFound
	default:
		return w, fmt.Errorf("db error: %w", err)
	}
}

// Transitions guard on status in SQL: a record that is no longer
// pending matches no row, and the miss is explained afterwards.
const setVerified = `-- name: SetWithdrawalVerified
UPDATE withdrawals
SET status = 'verified', verified_at = $2, verified_by = $3
WHERE id = $1 AND status = 'pending'
RETURNING ` + withdrawalColumns

func (r *WithdrawalRepo) SetVerified(ctx context.Context, id uuid.UUID, verifiedAt time.Time, adminID uuid.UUID) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, setVerified, id, verifiedAt, adminID)
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return r.explainMissedTransition(ctx, id)
	}
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

const setRejected = `-- name: SetWithdrawalRejected
UPDATE withdrawals
SET status = 'rejected', note = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + withdrawalColumns

func (r *WithdrawalRepo) SetRejected(ctx context.Context, id uuid.UUID, note string) (models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, setRejected, id, note)
	w, err := pgx.CollectOneRow(rows, rowToWithdrawal)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return r.explainMissedTransition(ctx, id)
	}
	if err != nil {
		return w, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

const deleteWithdrawal = `-- name: DeleteWithdrawal
DELETE FROM withdrawals
WHERE id = $1
`

func (r *WithdrawalRepo) DeleteWithdrawal(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteWithdrawal, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrWithdrawalNotFound
	}

	return nil
}

const listForUser = `-- name: ListWithdrawalsForUser
SELECT ` + withdrawalColumns + ` FROM withdrawals
WHERE user_id = $1
ORDER BY requested_at DESC
`

func (r *WithdrawalRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, listForUser, userID)
	ws, err := pgx.CollectRows(rows, rowToWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ws, nil
}

const listAll = `-- name: ListAllWithdrawals
SELECT ` + withdrawalColumns + ` FROM withdrawals
ORDER BY requested_at DESC
`

func (r *WithdrawalRepo) ListAll(ctx context.Context) ([]models.Withdrawal, error) {
	rows, _ := r.DB.Query(ctx, listAll)
	ws, err := pgx.CollectRows(rows, rowToWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ws, nil
}

const sumPendingSince = `-- name: SumPendingSince
SELECT COALESCE(sum(amount), 0) FROM withdrawals
WHERE user_id = $1 AND status = 'pending' AND requested_at >= $2
`

func (r *WithdrawalRepo) SumPendingSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumPendingSince, userID, since).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

const sumVerifiedSince = `-- name: SumVerifiedSince
SELECT COALESCE(sum(amount), 0) FROM withdrawals
WHERE user_id = $1 AND status = 'verified' AND verified_at >= $2
`

func (r *WithdrawalRepo) SumVerifiedSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.DB.QueryRow(ctx, sumVerifiedSince, userID, since).Scan(&sum)
	if err != nil {
		return sum, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

const earliestVerifiedSince = `-- name: EarliestVerifiedSince
SELECT min(verified_at) FROM withdrawals
WHERE user_id = $1 AND status = 'verified' AND verified_at >= $2
`

func (r *WithdrawalRepo) EarliestVerifiedSince(ctx context.Context, userID uuid.UUID, since time.Time) (*time.Time, error) {
	var earliest *time.Time
	err := r.DB.QueryRow(ctx, earliestVerifiedSince, userID, since).Scan(&earliest)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return earliest, nil
}

// Pending records count from their request time, verified ones from
// their verification time.
const earliestContributing = `-- name: EarliestContributing
SELECT min(ts) FROM (
	SELECT requested_at AS ts FROM withdrawals
	WHERE user_id = $1 AND status = 'pending' AND requested_at >= $2
	UNION ALL
	SELECT verified_at AS ts FROM withdrawals
	WHERE user_id = $1 AND status = 'verified' AND verified_at >= $2
) contributing
`

func (r *WithdrawalRepo) EarliestContributing(ctx context.Context, userID uuid.UUID, since time.Time) (*time.Time, error) {
	var earliest *time.Time
	err := r.DB.QueryRow(ctx, earliestContributing, userID, since).Scan(&earliest)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return earliest, nil
}

func (r *WithdrawalRepo) explainMissedTransition(ctx context.Context, id uuid.UUID) (models.Withdrawal, error) {
	w, err := r.GetWithdrawal(ctx, id, false)
	if err != nil {
		return w, err
	}
	return w, apperrors.ErrWithdrawalNotPending
}

func rowToWithdrawal(row pgx.CollectableRow) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Contact, &w.Status, &w.RequestedAt, &w.VerifiedAt, &w.VerifiedBy, &w.Note)
	return w, err
}
