package convert

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
	"github.com/almaz-dev/eduspin/internal/repository/postgres"
	"github.com/almaz-dev/eduspin/internal/testutil"
)

func TestConvertService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper function to create Service within transaction
	inTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(Config{}, storage), storage)
		})
	}

	// Create user with the given points and currency
	setup := func(t *testing.T, storage repository.Storage, points int64, currency decimal.Decimal) models.User {
		t.Helper()

		user, err := storage.User().CreateUser(t.Context(), "conv-user", "hash", models.RoleUser)
		require.NoError(t, err)

		err = storage.Balance().CreateBalance(t.Context(), user.ID)
		require.NoError(t, err)

		if points != 0 || !currency.IsZero() {
			_, err = storage.Balance().Exchange(t.Context(), user.ID, points, currency)
			require.NoError(t, err)
		}

		return user
	}

	t.Run("PointsToCurrency", func(t *testing.T) {
		t.Run("1000 points become exactly 3 dollars", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 1000, decimal.Zero)

				points := int64(1000)
				balance, credited, err := s.PointsToCurrency(t.Context(), user.ID, &points)

				require.NoError(t, err)
				assert.True(t, credited.Equal(decimal.RequireFromString("3")), "1000 points at 0.003 should credit $3.000000, got %s", credited)
				assert.Equal(t, int64(0), balance.Points, "point balance should drop by exactly 1000")
				assert.True(t, balance.Currency.Equal(decimal.RequireFromString("3")))
			})
		})

		t.Run("no amount converts everything", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 500, decimal.Zero)

				balance, credited, err := s.PointsToCurrency(t.Context(), user.ID, nil)

				require.NoError(t, err)
				assert.Equal(t, int64(0), balance.Points)
				assert.True(t, credited.Equal(decimal.RequireFromString("1.5")))
			})
		})

		t.Run("amount clamped to balance", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 100, decimal.Zero)

				points := int64(100_000)
				balance, credited, err := s.PointsToCurrency(t.Context(), user.ID, &points)

				require.NoError(t, err)
				assert.Equal(t, int64(0), balance.Points, "conversion should never overdraw points")
				assert.True(t, credited.Equal(decimal.RequireFromString("0.3")))
			})
		})

		t.Run("nothing to convert", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 0, decimal.Zero)

				_, _, err := s.PointsToCurrency(t.Context(), user.ID, nil)
				require.ErrorIs(t, err, apperrors.ErrNothingToConvert)

				points := int64(-5)
				_, _, err = s.PointsToCurrency(t.Context(), user.ID, &points)
				require.ErrorIs(t, err, apperrors.ErrNothingToConvert)
			})
		})
	})

	t.Run("CurrencyToPoints", func(t *testing.T) {
		t.Run("floors to whole points and debits exact cost", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 0, decimal.RequireFromString("1"))

				amount := decimal.RequireFromString("1")
				balance, points, debited, err := s.CurrencyToPoints(t.Context(), user.ID, &amount)

				require.NoError(t, err)
				// 1 / 0.003 = 333.33..., floored to 333 points costing 0.999
				assert.Equal(t, int64(333), points)
				assert.True(t, debited.Equal(decimal.RequireFromString("0.999")), "debit should be the exact cost of the points granted, got %s", debited)
				assert.Equal(t, int64(333), balance.Points)
				assert.True(t, balance.Currency.Equal(decimal.RequireFromString("0.001")), "residue stays on the currency side, got %s", balance.Currency)
			})
		})

		t.Run("too small to buy a point", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 0, decimal.RequireFromString("0.002"))

				_, _, _, err := s.CurrencyToPoints(t.Context(), user.ID, nil)

				require.ErrorIs(t, err, apperrors.ErrAmountTooSmall)
			})
		})

		t.Run("zero or negative amount rejected", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 0, decimal.RequireFromString("10"))

				for _, raw := range []string{"0", "-1"} {
					amount := decimal.RequireFromString(raw)
					_, _, _, err := s.CurrencyToPoints(t.Context(), user.ID, &amount)

					require.ErrorIs(t, err, apperrors.ErrAmountTooSmall, "amount %s should be rejected", raw)
				}
			})
		})

		t.Run("round trip never gains points", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage) {
				user := setup(t, storage, 1000, decimal.Zero)

				balance, credited, err := s.PointsToCurrency(t.Context(), user.ID, nil)
				require.NoError(t, err)
				require.Equal(t, int64(0), balance.Points)

				balance, points, _, err := s.CurrencyToPoints(t.Context(), user.ID, &credited)
				require.NoError(t, err)

				assert.LessOrEqual(t, points, int64(1000), "round trip must not mint points")
				assert.LessOrEqual(t, balance.Points, int64(1000))
				assert.False(t, balance.Currency.IsNegative())
			})
		})
	})
}
