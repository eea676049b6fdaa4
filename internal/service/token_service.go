package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/logging"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/tokens"
)

// TokenService owns the HTTP auth gate: cookie reading, transparent
// access-token refresh and identity attachment.
type TokenService struct {
	DB     *gorm.DB
	Tokens *tokens.Service
	Secure bool
}

const identityKey = "identity"

var ErrNoIdentity = errors.New("no identity attached to request")

func CreateCookie(name, value, path string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string, secure bool) *http.Cookie {
	return CreateCookie(name, "", path, time.Now().Add(-1*time.Hour), secure)
}

// SetIdentity attaches the verified claims to the request.
func SetIdentity(c echo.Context, claims *tokens.Claims) {
	c.Set(identityKey, claims)
}

// IdentityFrom returns the identity the auth gate attached, or
// ErrNoIdentity on an ungated route.
func IdentityFrom(c echo.Context) (*tokens.Claims, error) {
	if claims, ok := c.Get(identityKey).(*tokens.Claims); ok && claims != nil {
		return claims, nil
	}
	return nil, ErrNoIdentity
}

// AutoRefresh is the authenticated-request gate. A valid access-token
// cookie passes through; an expired one is renewed from the refresh
// cookie without the caller noticing. Verification failures other than
// expiry never trigger a refresh attempt.
func (t *TokenService) AutoRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "auto_refresh")

		accessCookie, err := c.Cookie("token")
		if err != nil || accessCookie.Value == "" {
			return echo.NewHTTPError(http.StatusForbidden, "access denied, token missing")
		}

		claims, err := t.Tokens.VerifyAccess(accessCookie.Value)
		if err == nil {
			SetIdentity(c, claims)
			return next(c)
		}

		if !errors.Is(err, tokens.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		refreshCookie, rErr := c.Cookie("refreshToken")
		if rErr != nil || refreshCookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		}

		refreshClaims, rErr := t.Tokens.VerifyRefresh(refreshCookie.Value)
		if rErr != nil {
			l.Warn("refresh failed", "error", rErr)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}

		var user models.User
		if dbErr := t.DB.First(&user, refreshClaims.UserID).Error; dbErr != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}

		newAccess, mErr := t.Tokens.IssueAccess(&user)
		if mErr != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot issue token")
		}

		c.SetCookie(CreateCookie("token", newAccess, "/", time.Now().Add(t.Tokens.AccessTTL), t.Secure))

		newClaims, pErr := t.Tokens.VerifyAccess(newAccess)
		if pErr != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}
		SetIdentity(c, newClaims)
		l.Info("access token refreshed", "user_id", user.ID)
		return next(c)
	}
}
