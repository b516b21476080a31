// Package handler contains the HTTP endpoints. Handlers bind and sanity
// check request bodies, delegate to the services and translate typed
// service errors into JSON responses.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/service"
)

const dbTimeout = 5 * time.Second

// opCtx derives a bounded context for store calls from the request.
func opCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func reqMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	}
}

// callerID returns the authenticated user's id set by the JWT middleware.
func callerID(c echo.Context) (uuid.UUID, bool) {
	s, ok := c.Get("user_id").(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

func callerRole(c echo.Context) model.Role {
	if v, ok := c.Get("role").(string); ok {
		r := model.Role(v)
		if r.Valid() {
			return r
		}
	}
	return model.RoleGuest
}

// writeError maps service errors onto their status; anything else is a 500
// with the detail kept out of the response.
func writeError(c echo.Context, err error) error {
	if se, ok := service.AsError(err); ok {
		body := echo.Map{"error": se.Message}
		if len(se.Details) > 0 {
			body["details"] = se.Details
		}
		return c.JSON(se.HTTPStatus(), body)
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
