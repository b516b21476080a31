package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/service"
)

// UserHandler serves the self-service /v1/me endpoints.
type UserHandler struct {
	Auth *service.AuthService
}

func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{Auth: auth}
}

type updateMeReq struct {
	FullName string `json:"fullName"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	user, err := h.Auth.GetUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateMe changes the caller's display name.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	user, err := h.Auth.UpdateProfile(ctx, uid, req.FullName, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword verifies the current password and swaps in a new one.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currentPassword/newPassword required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, uid, req.CurrentPassword, req.NewPassword, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed"})
}

// DeleteMe removes the caller's account and everything hanging off it.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.DeleteAccount(ctx, uid, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
