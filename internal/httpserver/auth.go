package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ngalkin/session_auth/internal/limiter"
	"github.com/ngalkin/session_auth/internal/service"
	"github.com/ngalkin/session_auth/pkg/cookies"
	"github.com/ngalkin/session_auth/pkg/logging"
	"github.com/ngalkin/session_auth/pkg/tokens"
)

const refreshCookieName = "refreshToken"

// Rejections deliberately carry one uniform message: the body never tells
// a caller whether the token was missing, expired or tampered. The logs
// and audit events keep the distinction.
const msgNotAuthenticated = "not authenticated"

type AuthHTTP struct {
	Svc     *service.AuthService
	Limiter *limiter.Limiter
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.allow(c, req.Username); err != nil {
		return err
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password, req.Name, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			return echo.NewHTTPError(http.StatusBadRequest, "username already exists")
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid registration data")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
		}
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.allow(c, req.Username); err != nil {
		return err
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	c.SetCookie(cookies.RefreshCookie(refreshCookieName, res.RefreshToken, res.RefreshExp))
	return c.JSON(http.StatusOK, echo.Map{"accessToken": res.AccessToken})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
	}

	accessToken, err := h.Svc.RefreshAccess(ctx, cookie.Value)
	if err != nil {
		if isTokenRejection(err) {
			c.SetCookie(cookies.ClearCookie(refreshCookieName))
			return echo.NewHTTPError(http.StatusForbidden, msgNotAuthenticated)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"accessToken": accessToken})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if err := h.Svc.Logout(ctx, cookie.Value); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
		}
	}

	c.SetCookie(cookies.ClearCookie(refreshCookieName))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) CurrentUser(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, msgNotAuthenticated)
	}

	user, err := h.Svc.CurrentUser(ctx, cookie.Value)
	if err != nil {
		switch {
		case isTokenRejection(err):
			return echo.NewHTTPError(http.StatusForbidden, msgNotAuthenticated)
		case errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
		}
	}

	return c.JSON(http.StatusOK, user)
}

// Verify is the access-token consumption endpoint; the auth middleware
// has already populated user_id and role by the time it runs.
func (h *AuthHTTP) Verify(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}

func (h *AuthHTTP) allow(c echo.Context, username string) error {
	ctx := c.Request().Context()
	err := h.Limiter.Allow(ctx, username, c.RealIP())
	if err == nil {
		return nil
	}
	if errors.Is(err, limiter.ErrRateLimited) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts")
	}
	// Redis being down must not lock everyone out.
	logging.FromContext(ctx).Error("limiter_unavailable", "error", err)
	return nil
}

func isTokenRejection(err error) bool {
	return errors.Is(err, tokens.ErrInvalidToken) ||
		errors.Is(err, tokens.ErrTokenExpired) ||
		errors.Is(err, service.ErrTokenNotFound) ||
		errors.Is(err, service.ErrMissingToken)
}
