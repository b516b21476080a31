package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/service"
)

// AdminHandler serves the privileged user-management endpoints.
type AdminHandler struct {
	Admin  *service.AdminService
	Auth   *service.AuthService
	Policy service.Policy
}

func NewAdminHandler(admin *service.AdminService, auth *service.AuthService) *AdminHandler {
	return &AdminHandler{Admin: admin, Auth: auth}
}

type adminUpdateReq struct {
	FullName      *string `json:"fullName"`
	Email         *string `json:"email"`
	Password      *string `json:"password"`
	Role          *string `json:"role"`
	EmailVerified *bool   `json:"emailVerified"`
	UnlinkLocal   bool    `json:"unlinkLocal"`
}
type mergeUsersReq struct {
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId"`
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := opCtx(c)
	defer cancel()

	users, err := h.Admin.ListUsers(ctx, callerRole(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// GetUser returns one account by id.
func (h *AdminHandler) GetUser(c echo.Context) error {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	user, err := h.Admin.GetUser(ctx, callerRole(c), targetID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser applies a partial update to an account.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req adminUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	patch := service.UserPatch{
		FullName:      req.FullName,
		Username:      req.Email,
		Password:      req.Password,
		EmailVerified: req.EmailVerified,
		UnlinkLocal:   req.UnlinkLocal,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		if !role.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
		patch.Role = &role
	}

	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	user, err := h.Admin.UpdateUser(ctx, uid, callerRole(c), targetID, patch, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes an account.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Admin.DeleteUser(ctx, uid, callerRole(c), targetID, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MergeUsers folds the source account's identities into the destination
// and deletes the source. All-or-nothing: any provider collision aborts.
func (h *AdminHandler) MergeUsers(c echo.Context) error {
	if err := h.Policy.CanMergeAccounts(callerRole(c)); err != nil {
		return writeError(c, err)
	}
	var req mergeUsersReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sourceId"})
	}
	destinationID, err := uuid.Parse(req.DestinationID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid destinationId"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	moved, err := h.Auth.MergeAccounts(ctx, sourceID, destinationID, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Accounts merged", "identities": moved})
}
