package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// RBAC lets the request through only when the token role is one of
// allowedRoles. It must run after Auth. A rejected role surfaces as
// domain.ErrForbidden so the API error handler renders it.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if _, ok := allowed[role]; !ok {
				return fmt.Errorf("role %q on %s: %w", role, c.Path(), domain.ErrForbidden)
			}
			return next(c)
		}
	}
}
