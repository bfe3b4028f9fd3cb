package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/almaz-dev/eduspin/internal/models"
)

type SpinRepo struct {
	DB DBTX
}

const createSpin = `-- name: CreateSpin
INSERT INTO spins (id, user_id, created_at, bet, outcome)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, created_at, bet, outcome
`

func (r *SpinRepo) CreateSpin(ctx context.Context, spin models.Spin) (models.Spin, error) {
	if spin.ID == uuid.Nil {
		spin.ID = uuid.New()
	}
	if spin.CreatedAt.IsZero() {
		spin.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createSpin, spin.ID, spin.UserID, spin.CreatedAt, spin.Bet, spin.Outcome)
	spin, err := pgx.CollectOneRow(rows, rowToSpin)
	if err != nil {
		return spin, fmt.Errorf("db error: %w", err)
	}

	return spin, nil
}

const countSpinsSince = `-- name: CountSpinsSince
SELECT count(*) FROM spins
WHERE user_id = $1 AND created_at >= $2
`

func (r *SpinRepo) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, countSpinsSince, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

const listSpins = `-- name: ListSpins
SELECT id, user_id, created_at, bet, outcome FROM spins
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (r *SpinRepo) ListSpins(ctx context.Context, userID uuid.UUID, limit int) ([]models.Spin, error) {
	rows, _ := r.DB.Query(ctx, listSpins, userID, limit)
	spins, err := pgx.CollectRows(rows, rowToSpin)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return spins, nil
}

const getControl = `-- name: GetSpinControl
SELECT disabled, reason, updated_at, updated_by FROM spin_control
`

func (r *SpinRepo) GetControl(ctx context.Context) (models.SpinControl, error) {
	rows, _ := r.DB.Query(ctx, getControl)
	control, err := pgx.CollectOneRow(rows, rowToControl)

	switch {
	case err == nil:
		return control, nil
	case errors.Is(err, pgx.ErrNoRows):
		// The control row is seeded by migration; tolerate its absence
		// by reporting spins enabled.
		return models.SpinControl{}, nil
	default:
		return control, fmt.Errorf("db error: %w", err)
	}
}

// Upsert on the singleton key: last write wins, a second row can't appear.
const setControl = `-- name: SetSpinControl
INSERT INTO spin_control (singleton, disabled, reason, updated_at, updated_by)
VALUES (true, $1, $2, $3, $4)
ON CONFLICT (singleton) DO UPDATE
SET disabled = EXCLUDED.disabled,
    reason = EXCLUDED.reason,
    updated_at = EXCLUDED.updated_at,
    updated_by = EXCLUDED.updated_by
RETURNING disabled, reason, updated_at, updated_by
`

func (r *SpinRepo) SetControl(ctx context.Context, control models.SpinControl) (models.SpinControl, error) {
	if control.UpdatedAt.IsZero() {
		control.UpdatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, setControl, control.Disabled, control.Reason, control.UpdatedAt, control.UpdatedBy)
	control, err := pgx.CollectOneRow(rows, rowToControl)
	if err != nil {
		return control, fmt.Errorf("db error: %w", err)
	}

	return control, nil
}

func rowToSpin(row pgx.CollectableRow) (models.Spin, error) {
	var s models.Spin
	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.Bet, &s.Outcome)
	return s, err
}

func rowToControl(row pgx.CollectableRow) (models.SpinControl, error) {
	var c models.SpinControl
	err := row.Scan(&c.Disabled, &c.Reason, &c.UpdatedAt, &c.UpdatedBy)
	return c, err
}
