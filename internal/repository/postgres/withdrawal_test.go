package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
	"github.com/almaz-dev/eduspin/internal/testutil"
)

func TestWithdrawal(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	createUser := func(t *testing.T, storage repository.Storage, username string) models.User {
		t.Helper()
		user, err := storage.User().CreateUser(t.Context(), username, "hashedpassword", models.RoleUser)
		require.NoError(t, err)
		return user
	}

	t.Run("CreateWithdrawal", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")

			t.Run("defaults filled", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					w, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})

					require.NoError(t, err)
					require.NotEqual(t, uuid.Nil, w.ID, "id has to be generated")
					require.Equal(t, models.WithdrawalStatusPending, w.Status)
					require.WithinDuration(t, time.Now(), w.RequestedAt, time.Minute)
					require.Nil(t, w.VerifiedAt)
					require.Nil(t, w.VerifiedBy)
					require.Nil(t, w.Note)
				})
			})

			t.Run("explicit request time kept", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					requestedAt := time.Now().Add(-10 * time.Hour)
					w, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:      user.ID,
						Amount:      decimal.NewFromInt(40),
						Contact:     "@payout",
						RequestedAt: requestedAt,
					})

					require.NoError(t, err)
					require.WithinDuration(t, requestedAt, w.RequestedAt, time.Second)
				})
			})
		})
	})

	t.Run("GetWithdrawal", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")
			created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
				UserID:  user.ID,
				Amount:  decimal.NewFromInt(40),
				Contact: "@payout",
			})
			require.NoError(t, err)

			t.Run("found", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					w, err := storage.Withdrawal().GetWithdrawal(t.Context(), created.ID, false)

					require.NoError(t, err)
					require.Equal(t, created.ID, w.ID)
					require.True(t, w.Amount.Equal(decimal.NewFromInt(40)))
				})
			})

			t.Run("not found", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Withdrawal().GetWithdrawal(t.Context(), uuid.New(), false)

					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)
				})
			})
		})
	})

	t.Run("SetVerified", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")
			admin := createUser(t, storage, "theadmin")

			t.Run("pending becomes verified", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})
					require.NoError(t, err)

					verifiedAt := time.Now()
					w, err := storage.Withdrawal().SetVerified(t.Context(), created.ID, verifiedAt, admin.ID)

					require.NoError(t, err)
					require.Equal(t, models.WithdrawalStatusVerified, w.Status)
					require.NotNil(t, w.VerifiedAt)
					require.WithinDuration(t, verifiedAt, *w.VerifiedAt, time.Second)
					require.NotNil(t, w.VerifiedBy)
					require.Equal(t, admin.ID, *w.VerifiedBy)
				})
			})

			t.Run("verified twice refused", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})
					require.NoError(t, err)
					_, err = storage.Withdrawal().SetVerified(t.Context(), created.ID, time.Now(), admin.ID)
					require.NoError(t, err)

					w, err := storage.Withdrawal().SetVerified(t.Context(), created.ID, time.Now(), admin.ID)

					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotPending)
					require.Equal(t, models.WithdrawalStatusVerified, w.Status, "current record is returned with the error")
				})
			})

			t.Run("unknown id", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Withdrawal().SetVerified(t.Context(), uuid.New(), time.Now(), admin.ID)

					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)
				})
			})
		})
	})

	t.Run("SetRejected", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")

			t.Run("pending becomes rejected with note", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})
					require.NoError(t, err)

					w, err := storage.Withdrawal().SetRejected(t.Context(), created.ID, "contact unreachable")

					require.NoError(t, err)
					require.Equal(t, models.WithdrawalStatusRejected, w.Status)
					require.NotNil(t, w.Note)
					require.Equal(t, "contact unreachable", *w.Note)
				})
			})

			t.Run("rejected twice refused", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})
					require.NoError(t, err)
					_, err = storage.Withdrawal().SetRejected(t.Context(), created.ID, "first")
					require.NoError(t, err)

					_, err = storage.Withdrawal().SetRejected(t.Context(), created.ID, "second")

					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotPending)
				})
			})
		})
	})

	t.Run("DeleteWithdrawal", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")

			t.Run("delete ok", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					created, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:  user.ID,
						Amount:  decimal.NewFromInt(40),
						Contact: "@payout",
					})
					require.NoError(t, err)

					err = storage.Withdrawal().DeleteWithdrawal(t.Context(), created.ID)
					require.NoError(t, err)

					_, err = storage.Withdrawal().GetWithdrawal(t.Context(), created.ID, false)
					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)
				})
			})

			t.Run("unknown id", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					err := storage.Withdrawal().DeleteWithdrawal(t.Context(), uuid.New())

					require.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)
				})
			})
		})
	})

	t.Run("WindowedSums", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")
			admin := createUser(t, storage, "theadmin")
			now := time.Now()
			since := now.Add(-24 * time.Hour)

			create := func(t *testing.T, storage repository.Storage, amount int64, requestedAt time.Time) models.Withdrawal {
				t.Helper()
				w, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
					UserID:      user.ID,
					Amount:      decimal.NewFromInt(amount),
					Contact:     "@payout",
					RequestedAt: requestedAt,
				})
				require.NoError(t, err)
				return w
			}

			t.Run("pending counts from request time", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					create(t, storage, 30, now.Add(-2*time.Hour))
					create(t, storage, 20, now.Add(-23*time.Hour))
					create(t, storage, 99, now.Add(-25*time.Hour)) // outside the window

					sum, err := storage.Withdrawal().SumPendingSince(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.True(t, sum.Equal(decimal.NewFromInt(50)), "expected 50 got %s", sum)
				})
			})

			t.Run("verified counts from verification time", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					// Requested long ago but verified recently: still in the window.
					old := create(t, storage, 30, now.Add(-48*time.Hour))
					_, err := storage.Withdrawal().SetVerified(t.Context(), old.ID, now.Add(-time.Hour), admin.ID)
					require.NoError(t, err)

					// Verified before the window opened.
					stale := create(t, storage, 99, now.Add(-48*time.Hour))
					_, err = storage.Withdrawal().SetVerified(t.Context(), stale.ID, now.Add(-30*time.Hour), admin.ID)
					require.NoError(t, err)

					sum, err := storage.Withdrawal().SumVerifiedSince(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.True(t, sum.Equal(decimal.NewFromInt(30)), "expected 30 got %s", sum)

					pending, err := storage.Withdrawal().SumPendingSince(t.Context(), user.ID, since)
					require.NoError(t, err)
					require.True(t, pending.IsZero(), "verified records leave the pending sum")
				})
			})

			t.Run("empty window sums to zero", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					sum, err := storage.Withdrawal().SumPendingSince(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.True(t, sum.IsZero())
				})
			})
		})
	})

	t.Run("EarliestContributing", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")
			admin := createUser(t, storage, "theadmin")
			now := time.Now()
			since := now.Add(-24 * time.Hour)

			t.Run("nothing contributes", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					earliest, err := storage.Withdrawal().EarliestContributing(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.Nil(t, earliest)
				})
			})

			t.Run("min over both statuses", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					verifiedAt := now.Add(-20 * time.Hour)
					w, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:      user.ID,
						Amount:      decimal.NewFromInt(30),
						Contact:     "@payout",
						RequestedAt: now.Add(-40 * time.Hour),
					})
					require.NoError(t, err)
					_, err = storage.Withdrawal().SetVerified(t.Context(), w.ID, verifiedAt, admin.ID)
					require.NoError(t, err)

					_, err = storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:      user.ID,
						Amount:      decimal.NewFromInt(20),
						Contact:     "@payout",
						RequestedAt: now.Add(-2 * time.Hour),
					})
					require.NoError(t, err)

					earliest, err := storage.Withdrawal().EarliestContributing(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.NotNil(t, earliest)
					require.WithinDuration(t, verifiedAt, *earliest, time.Second, "the verified record entered the window first")
				})
			})
		})
	})

	t.Run("EarliestVerifiedSince", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user := createUser(t, storage, "testuser")
			admin := createUser(t, storage, "theadmin")
			now := time.Now()
			since := now.Add(-24 * time.Hour)

			t.Run("pending records do not count", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					_, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
						UserID:      user.ID,
						Amount:      decimal.NewFromInt(30),
						Contact:     "@payout",
						RequestedAt: now.Add(-time.Hour),
					})
					require.NoError(t, err)

					earliest, err := storage.Withdrawal().EarliestVerifiedSince(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.Nil(t, earliest, "a pending record must not produce a verified timestamp")
				})
			})

			t.Run("min verified_at within the window", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					makeVerified := func(amount int64, verifiedAt time.Time) {
						w, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
							UserID:      user.ID,
							Amount:      decimal.NewFromInt(amount),
							Contact:     "@payout",
							RequestedAt: now.Add(-40 * time.Hour),
						})
						require.NoError(t, err)
						_, err = storage.Withdrawal().SetVerified(t.Context(), w.ID, verifiedAt, admin.ID)
						require.NoError(t, err)
					}

					makeVerified(30, now.Add(-20*time.Hour))
					makeVerified(40, now.Add(-2*time.Hour))
					makeVerified(99, now.Add(-30*time.Hour)) // aged out

					earliest, err := storage.Withdrawal().EarliestVerifiedSince(t.Context(), user.ID, since)

					require.NoError(t, err)
					require.NotNil(t, earliest)
					require.WithinDuration(t, now.Add(-20*time.Hour), *earliest, time.Second)
				})
			})
		})
	})

	t.Run("Lists", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			alice := createUser(t, storage, "alice")
			bob := createUser(t, storage, "bob")

			for i, userID := range []uuid.UUID{alice.ID, alice.ID, bob.ID} {
				_, err := storage.Withdrawal().CreateWithdrawal(t.Context(), models.Withdrawal{
					UserID:      userID,
					Amount:      decimal.NewFromInt(30),
					Contact:     "@payout",
					RequestedAt: time.Now().Add(time.Duration(-i) * time.Hour),
				})
				require.NoError(t, err)
			}

			t.Run("per user newest first", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					ws, err := storage.Withdrawal().ListForUser(t.Context(), alice.ID)

					require.NoError(t, err)
					require.Len(t, ws, 2)
					require.True(t, ws[0].RequestedAt.After(ws[1].RequestedAt))
				})
			})

			t.Run("all users", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					ws, err := storage.Withdrawal().ListAll(t.Context())

					require.NoError(t, err)
					require.Len(t, ws, 3)
				})
			})
		})
	})
}
