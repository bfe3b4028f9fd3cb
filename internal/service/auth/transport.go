package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/almaz-dev/eduspin/internal/models"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"

	refreshCookiePath = "/api/auth/refresh"
)

// SetTokens writes the token pair to response cookies. The refresh
// cookie is scoped to the refresh endpoint only.
func (s *AuthService) SetTokens(ctx context.Context, w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.Access.Value,
		Path:     "/",
		Expires:  pair.Access.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     refreshCookiePath,
		Expires:  pair.Refresh.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetRefresh reads the refresh token from the request cookie.
func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return "", errors.New("refresh token cookie not found")
	}
	return c.Value, nil
}

// Auth authenticates the request: Authorization Bearer header first,
// access cookie as fallback.
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	access := ""

	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return models.User{}, errors.New("unsupported authorization header scheme")
		}
		access = token
	} else if c, err := r.Cookie(accessCookieName); err == nil {
		access = c.Value
	}

	if access == "" {
		return models.User{}, errors.New("no access token in request")
	}

	return s.UserFromAccess(ctx, access)
}

// ClearTokens expires both auth cookies.
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: accessCookieName, Value: "", Path: "/", Expires: expired, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: "", Path: refreshCookiePath, Expires: expired, HttpOnly: true})
}
