package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the caller's identity
// on the echo context under "user_id", "email" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization header"})
			}

			claims, err := utils.VerifyAccessToken(secret, parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, utils.ErrTokenExpired) {
					msg = "token expired"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}

			c.Set("user_id", claims.UserID.String())
			c.Set("email", claims.Email)
			c.Set("role", string(claims.Role))
			return next(c)
		}
	}
}

// CallerRole reads the role JWTAuth stored on the context. Missing or bogus
// values come back as guest so downstream checks fail closed.
func CallerRole(c echo.Context) model.Role {
	if v, ok := c.Get("role").(string); ok {
		r := model.Role(v)
		if r.Valid() {
			return r
		}
	}
	return model.RoleGuest
}
