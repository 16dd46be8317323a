package middleware

import (
	"net/http"
	"strings"

	"gowa-broadcast/internal/service"

	"github.com/labstack/echo/v4"
)

// JWTAuth validates the access token from the Authorization header, or from
// the "token" query parameter for websocket clients that cannot set headers.
func JWTAuth(auth *service.Auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := c.QueryParam("token")

			if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return unauthorized(c, "Invalid authorization header format", "INVALID_AUTH_HEADER")
				}
				tokenString = parts[1]
			}
			if tokenString == "" {
				return unauthorized(c, "Unauthorized", "UNAUTHORIZED")
			}

			claims, err := auth.ValidateAccessToken(tokenString)
			if err != nil {
				return unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			}

			c.Set("user_claims", claims)
			c.Set("username", claims.Username)

			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message, code string) error {
	return c.JSON(http.StatusUnauthorized, map[string]any{
		"success": false,
		"message": message,
		"error": map[string]string{
			"code": code,
		},
	})
}
