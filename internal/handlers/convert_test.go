package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
	"github.com/almaz-dev/eduspin/internal/service/auth"
	"github.com/almaz-dev/eduspin/internal/testutil"
)

func Test_ConvertHandler(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("points to currency", func(t *testing.T) {
		withServer(pg, t, func(url string, authSvc *auth.AuthService, storage repository.Storage) {
			bearer := registerUser(t, authSvc, storage, "trader", models.RoleUser, 1000)

			code, body := doJSON(t, "POST", url+"/api/balance/convert/points", bearer, `{"points": 1000}`)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"points": 0,
					"currency": 3,
					"converted": 3
				}`, body)
		})
	})

	t.Run("points to currency converts all when amount omitted", func(t *testing.T) {
		withServer(pg, t, func(url string, authSvc *auth.AuthService, storage repository.Storage) {
			bearer := registerUser(t, authSvc, storage, "trader", models.RoleUser, 500)

			code, body := doJSON(t, "POST", url+"/api/balance/convert/points", bearer, `{}`)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"points": 0,
					"currency": 1.5,
					"converted": 1.5
				}`, body)
		})
	})

	t.Run("points to currency nothing to convert", func(t *testing.T) {
		withServer(pg, t, func(url string, authSvc *auth.AuthService, storage repository.Storage) {
			bearer := registerUser(t, authSvc, storage, "broke", models.RoleUser, 0)

			code, body := doJSON(t, "POST", url+"/api/balance/convert/points", bearer, `{}`)

			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.Contains(t, body, "No points to convert")
		})
	})

	t.Run("currency to points floors", func(t *testing.T) {
		withServer(pg, t, func(url string, authSvc *auth.AuthService, storage repository.Storage) {
			bearer := registerUser(t, authSvc, storage, "trader", models.RoleUser, 0)
			user, err := storage.User().GetUserByUsername(t.Context(), "trader")
			require.NoError(t, err)
			_, err = storage.Balance().AddCurrency(t.Context(), user.ID, decimal.NewFromInt(1))
			require.NoError(t, err)

			code, body := doJSON(t, "POST", url+"/api/balance/convert/currency", bearer, `{"amount": 1}`)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			var resp struct {
				Points    int64   `json:"points"`
				Currency  float64 `json:"currency"`
				Converted int64   `json:"converted"`
				Debited   float64 `json:"debited"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			require.Equal(t, int64(333), resp.Converted, "1 currency buys 333 whole points at 0.003")
			require.Equal(t, int64(333), resp.Points)
			require.InDelta(t, 0.999, resp.Debited, 1e-9, "only the spent part is debited")
			require.InDelta(t, 0.001, resp.Currency, 1e-9, "the residue stays on the wallet")
		})
	})

	t.Run("currency to points amount too small", func(t *testing.T) {
		withServer(pg, t, func(url string, authSvc *auth.AuthService, storage repository.Storage) {
			bearer := registerUser(t, authSvc, storage, "trader", models.RoleUser, 0)
			user, err := storage.User().GetUserByUsername(t.Context(), "trader")
			require.NoError(t, err)
			_, err = storage.Balance().AddCurrency(t.Context(), user.ID, decimal.NewFromInt(1))
			require.NoError(t, err)

			code, body := doJSON(t, "POST", url+"/api/balance/convert/currency", bearer, `{"amount": 0.002}`)

			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.Contains(t, body, "Amount too small")
		})
	})
}
