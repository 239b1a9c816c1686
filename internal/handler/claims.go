package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskdesk/internal/auth"
)

// currentClaims returns the verified claims attached by the access-control
// middleware. Handlers behind the secured group can rely on it being set.
func currentClaims(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get("user").(*auth.Claims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return claims, nil
}
