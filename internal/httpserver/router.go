package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ngalkin/session_auth/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	AccessAuth  *middleware.AccessAuth
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/refresh", d.AuthHandler.Refresh)
	e.POST("/logout", d.AuthHandler.Logout)
	e.GET("/user", d.AuthHandler.CurrentUser)

	private := e.Group("")
	private.Use(d.AccessAuth.RequireAuth)
	private.GET("/verify", d.AuthHandler.Verify)
}
