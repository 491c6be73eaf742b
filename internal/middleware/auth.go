package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/pkg/jwtutil"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

// AuthMiddleware validates the JWT token from the Authorization header
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		if claims.EmpresaID != nil {
			c.Set("empresa_id", *claims.EmpresaID)
		}

		return next(c)
	}
}

// EmpresaID pulls the authenticated empresa id out of the request context.
// The second return is false for tokens issued before the empresa existed.
func EmpresaID(c echo.Context) (uint, bool) {
	id, ok := c.Get("empresa_id").(uint)
	return id, ok
}

// UserID pulls the authenticated user id out of the request context
func UserID(c echo.Context) uint {
	id, _ := c.Get("user_id").(uint)
	return id
}
