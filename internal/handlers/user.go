package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/almaz-dev/eduspin/internal/handlers/render"
	"github.com/almaz-dev/eduspin/internal/handlers/userctx"
	"github.com/almaz-dev/eduspin/internal/logger"
)

func handleUserMe() http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Role     string    `json:"role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{ID: user.ID, Username: user.Username, Role: user.Role})
	})
}

func handleUserBalance(userService userService, l logger.Logger) http.Handler {
	type response struct {
		Points   int64   `json:"points"`
		Currency float64 `json:"currency"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := userService.GetBalance(r.Context(), user.ID)

		switch err {
		case nil:
			currency, _ := balance.Currency.Float64()
			render.JSON(w, response{Points: balance.Points, Currency: currency})
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
