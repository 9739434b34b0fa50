package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ngalkin/session_auth/pkg/tokens"
)

// AccessAuth guards routes with a bearer access token. It is the
// server-side consumption point for access tokens: stateless, no store
// lookup, just signature and embedded expiry.
type AccessAuth struct {
	Codec *tokens.Codec
}

func NewAccessAuth(codec *tokens.Codec) *AccessAuth {
	return &AccessAuth{Codec: codec}
}

func (m *AccessAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Codec.Parse(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set("user_id", claims.Subject)
		c.Set("role", claims.Role)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
