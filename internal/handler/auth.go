package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/service"
)

// AuthHandler exposes the credential auth endpoints. Autoverify skips
// email verification entirely, for deployments without SMTP.
type AuthHandler struct {
	Auth       *service.AuthService
	Autoverify bool
}

func NewAuthHandler(auth *service.AuthService, autoverify bool) *AuthHandler {
	return &AuthHandler{Auth: auth, Autoverify: autoverify}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type tokenReq struct {
	Token string `json:"token"`
}
type requestResetReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Register creates a local account. The new user must verify their email
// before logging in unless autoverification is on.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	// Public registration always lands on guest; only admins assign roles.
	user, err := h.Auth.Register(ctx, req.Email, req.Password, req.FullName, h.Autoverify, model.RoleGuest, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	msg := "Registration successful"
	if !h.Autoverify {
		msg = "Registration successful, please verify your email address"
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": user, "message": msg})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh rotates a refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, req.RefreshToken, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Logout revokes the presented refresh token. Always succeeds so clients
// can log out with a token that is already dead.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.RefreshToken, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

// VerifyEmail redeems a verification token. Verifying twice is fine.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	already, err := h.Auth.VerifyEmail(ctx, req.Token, reqMeta(c))
	if err != nil {
		return writeError(c, err)
	}
	msg := "Email verified"
	if already {
		msg = "Email already verified"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// ResendVerification issues a fresh verification token for the caller.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.ResendVerification(ctx, uid); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Verification email sent"})
}

// RequestPasswordReset mails a reset token. The response never reveals
// whether the address belongs to an account.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req requestResetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.RequestPasswordReset(ctx, req.Email, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If the account exists, a reset email has been sent"})
}

// ResetPassword redeems a reset token and sets a new password. All other
// sessions are revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/newPassword required"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword, reqMeta(c)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset"})
}
