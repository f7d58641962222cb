package middlewares

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

// RequireRole passes when the authenticated role matches at least one
// of the given roles, e.g. RequireRole(models.RoleAdmin) or
// RequireRole(models.RoleTeacher, models.RoleAdmin). Must run after
// RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(models.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
			}
			if _, ok := allowed[role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, map[string]any{"error": "FORBIDDEN"})
			}
			return next(c)
		}
	}
}
