package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/metrics"
	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/repository"
	"github.com/iliyamo/todo-api/internal/utils"
)

// RequestMeta carries per-request client attribution into audit records
// and session rows.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// UserInfo is the public user projection returned to clients. Password
// hashes and provider subject ids never leave the service layer.
type UserInfo struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"fullName"`
	Role            model.Role `json:"role"`
	EmailVerified   bool       `json:"emailVerified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	LocalUsername   *string    `json:"localUsername,omitempty"`
	GoogleEmail     *string    `json:"googleEmail,omitempty"`
	MSEmail         *string    `json:"msEmail,omitempty"`
}

// NewUserInfo projects a user record for API responses.
func NewUserInfo(u *model.User) UserInfo {
	return UserInfo{
		ID:              u.ID,
		Email:           u.Email(),
		FullName:        u.FullName,
		Role:            u.Role,
		EmailVerified:   u.EmailVerified(),
		EmailVerifiedAt: u.EmailVerifiedAt,
		LocalUsername:   u.LocalUsername,
		GoogleEmail:     u.GoogleEmail,
		MSEmail:         u.MSEmail,
	}
}

// AuthResult is returned by every operation that establishes a session.
type AuthResult struct {
	User         UserInfo `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

// MergedIdentities reports which provider blocks a merge moved.
type MergedIdentities struct {
	Local     bool `json:"local,omitempty"`
	Google    bool `json:"google,omitempty"`
	Microsoft bool `json:"microsoft,omitempty"`
}

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// AuthService orchestrates registration, login, logout, email
// verification, password reset and the federated link/unlink/merge flows.
// It holds no in-memory session state; every call is a self-contained
// transformation over the stores.
type AuthService struct {
	Users    UserStore
	Tokens   OneTimeTokenStore
	Sessions *SessionManager
	Audit    Auditor
	Email    EmailSender
	Metrics  metrics.Recorder
	Hash     utils.Argon2Params
}

// normalizeIdentifier lowercases and trims a local identifier.
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates a user with a local identity block. The identifier is
// normalized and doubles as the local username. When autoverify is false
// a verification token is issued and mailed; until it is redeemed the
// user cannot log in.
func (s *AuthService) Register(ctx context.Context, identifier, password, fullName string, autoverify bool, role model.Role, meta RequestMeta) (UserInfo, error) {
	username := normalizeIdentifier(identifier)
	if username == "" {
		return UserInfo{}, BadRequest("identifier required")
	}
	if !role.Valid() {
		role = model.RoleGuest
	}

	if v := utils.ValidatePasswordStrength(password, username); !v.Valid {
		return UserInfo{}, &Error{
			Kind:    KindBadRequest,
			Message: "Password does not meet security requirements",
			Details: v.Errors,
		}
	}

	if _, err := s.Users.GetByLocalUsername(ctx, username); err == nil {
		return UserInfo{}, Conflict("User with this username already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return UserInfo{}, err
	}

	hash, err := utils.HashPassword(s.Hash, password)
	if err != nil {
		return UserInfo{}, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:                uuid.New(),
		FullName:          strings.TrimSpace(fullName),
		Role:              role,
		LocalEnabled:      true,
		LocalUsername:     &username,
		LocalPasswordHash: &hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if autoverify {
		user.EmailVerifiedAt = &now
	}
	if err := s.Users.Create(ctx, user); err != nil {
		// The unique index is authoritative under concurrent registration.
		if errors.Is(err, repository.ErrDuplicate) {
			return UserInfo{}, Conflict("User with this username already exists")
		}
		return UserInfo{}, err
	}

	s.Metrics.RecordRegistration()
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditRegister, EntityType: "auth",
		Meta:      map[string]any{"local_username": username, "role": string(role), "autoverified": autoverify},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})

	if !autoverify {
		s.issueVerification(ctx, user)
	}
	return NewUserInfo(user), nil
}

// Login verifies local credentials and opens a session. The failure
// message is identical whether the identifier is unknown, local auth is
// disabled, no password is set, or the password mismatches, so callers
// cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, identifier, password string, meta RequestMeta) (AuthResult, error) {
	username := normalizeIdentifier(identifier)

	user, err := s.Users.GetByLocalUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AuthResult{}, s.loginFailure(ctx, nil, username, "user_not_found", meta)
		}
		return AuthResult{}, err
	}
	if !user.LocalEnabled {
		return AuthResult{}, s.loginFailure(ctx, &user.ID, username, "local_auth_disabled", meta)
	}
	if user.LocalPasswordHash == nil {
		return AuthResult{}, s.loginFailure(ctx, &user.ID, username, "no_password_set", meta)
	}
	if !utils.VerifyPassword(*user.LocalPasswordHash, password) {
		return AuthResult{}, s.loginFailure(ctx, &user.ID, username, "invalid_password", meta)
	}
	if !user.EmailVerified() {
		s.Metrics.RecordLogin(metrics.LoginFailure)
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditLoginFailure, EntityType: "auth",
			Meta:      map[string]any{"local_username": username, "reason": "email_not_verified"},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
		return AuthResult{}, Forbidden("Please verify your email address before logging in")
	}

	s.Metrics.RecordLogin(metrics.LoginSuccess)
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditLoginSuccess, EntityType: "auth",
		Meta:      map[string]any{"local_username": username},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return s.openSession(ctx, user, meta)
}

func (s *AuthService) loginFailure(ctx context.Context, userID *uuid.UUID, username, reason string, meta RequestMeta) error {
	s.Metrics.RecordLogin(metrics.LoginFailure)
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: userID, Action: model.AuditLoginFailure, EntityType: "auth",
		Meta:      map[string]any{"local_username": username, "reason": reason},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return Unauthorized("Invalid credentials")
}

// Refresh rotates a refresh token. All rotation failures surface as a
// generic unauthorized error.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (AuthResult, error) {
	pair, user, err := s.Sessions.Rotate(ctx, refreshToken, meta.UserAgent, meta.IPAddress)
	if err != nil {
		return AuthResult{}, err
	}
	s.Metrics.RecordTokenRotation()
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditRefreshTokenRotated, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return AuthResult{User: NewUserInfo(user), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout revokes the session behind a refresh token. Unknown and
// already-revoked tokens succeed silently; logout is best-effort.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) error {
	userID, err := s.Sessions.Revoke(ctx, refreshToken)
	if err != nil {
		return err
	}
	if userID != nil {
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: userID, Action: model.AuditLogout, EntityType: "auth",
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	}
	return nil
}

// VerifyEmail redeems a verification token. Redeeming an already-used
// token reports alreadyVerified instead of failing, so clicking the link
// twice is harmless.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, meta RequestMeta) (alreadyVerified bool, err error) {
	vt, err := s.Tokens.GetEmailVerificationByHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, BadRequest("Invalid verification token")
		}
		return false, err
	}
	if time.Now().UTC().After(vt.ExpiresAt) {
		return false, BadRequest("Verification token has expired")
	}
	if vt.VerifiedAt != nil {
		return true, nil
	}
	if err := s.Tokens.MarkEmailVerified(ctx, vt.ID, vt.UserID); err != nil {
		return false, err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &vt.UserID, Action: model.AuditEmailVerified, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return false, nil
}

// ResendVerification issues a fresh verification token for an
// unverified user, invalidating prior ones.
func (s *AuthService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BadRequest("User not found")
		}
		return err
	}
	if user.EmailVerified() {
		return BadRequest("Email already verified")
	}
	s.issueVerification(ctx, user)
	return nil
}

// issueVerification creates and mails a verification token. Failures are
// logged by the email sender, never returned: a flaky mail relay must not
// break registration.
func (s *AuthService) issueVerification(ctx context.Context, user *model.User) {
	raw, err := utils.RandomToken()
	if err != nil {
		return
	}
	now := time.Now().UTC()
	t := &model.EmailVerificationToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(verificationTokenTTL),
		CreatedAt: now,
	}
	if err := s.Tokens.CreateEmailVerification(ctx, t); err != nil {
		return
	}
	s.Email.SendVerification(user.Email(), user.FullName, raw)
}

// RequestPasswordReset issues a reset token when the identifier belongs
// to a local account. It always reports success so the endpoint cannot be
// used to probe which identifiers exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, identifier string, meta RequestMeta) error {
	username := normalizeIdentifier(identifier)
	user, err := s.Users.GetByLocalUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if !user.LocalEnabled {
		return nil
	}

	raw, err := utils.RandomToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t := &model.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := s.Tokens.CreatePasswordReset(ctx, t); err != nil {
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditPasswordResetRequest, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	s.Email.SendPasswordReset(user.Email(), user.FullName, raw)
	return nil
}

// ResetPassword redeems a reset token, replaces the password and revokes
// every outstanding session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	rt, err := s.Tokens.GetPasswordResetByHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BadRequest("Invalid or expired reset token")
		}
		return err
	}
	if time.Now().UTC().After(rt.ExpiresAt) {
		return BadRequest("Reset token has expired")
	}

	user, err := s.Users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BadRequest("Invalid or expired reset token")
		}
		return err
	}

	if v := utils.ValidatePasswordStrength(newPassword, user.Email()); !v.Valid {
		return &Error{
			Kind:    KindBadRequest,
			Message: "Password does not meet security requirements",
			Details: v.Errors,
		}
	}
	hash, err := utils.HashPassword(s.Hash, newPassword)
	if err != nil {
		return err
	}
	user.LocalPasswordHash = &hash
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.Tokens.MarkPasswordResetUsed(ctx, rt.ID); err != nil {
		return err
	}
	// A reset proves the old credential may be compromised; every existing
	// refresh session dies with it.
	if err := s.Sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditPasswordReset, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	s.Email.SendPasswordChanged(user.Email(), user.FullName)
	return nil
}

// ChangePassword rotates a local password for an authenticated user and
// revokes all sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}
	if !user.HasLocal() || user.LocalPasswordHash == nil {
		return BadRequest("Local authentication is not enabled for this account")
	}
	if !utils.VerifyPassword(*user.LocalPasswordHash, currentPassword) {
		return Unauthorized("Invalid credentials")
	}
	if v := utils.ValidatePasswordStrength(newPassword, user.Email()); !v.Valid {
		return &Error{
			Kind:    KindBadRequest,
			Message: "Password does not meet security requirements",
			Details: v.Errors,
		}
	}
	hash, err := utils.HashPassword(s.Hash, newPassword)
	if err != nil {
		return err
	}
	user.LocalPasswordHash = &hash
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.Sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditPasswordChanged, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	s.Email.SendPasswordChanged(user.Email(), user.FullName)
	return nil
}

// UpdateProfile changes the caller's display name.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName string, meta RequestMeta) (UserInfo, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return UserInfo{}, BadRequest("Full name must not be empty")
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserInfo{}, NotFound("User not found")
		}
		return UserInfo{}, err
	}
	if user.FullName != fullName {
		user.FullName = fullName
		user.UpdatedAt = time.Now().UTC()
		if err := s.Users.Update(ctx, user); err != nil {
			return UserInfo{}, err
		}
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditUserUpdated, EntityType: "user",
			Meta:      map[string]any{"fullName": fullName},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	}
	return NewUserInfo(user), nil
}

// DeleteAccount removes the caller's own account. Sessions, tokens and
// todos cascade at the schema level.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}
	if err := s.Users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &user.ID, Action: model.AuditAccountDeleted, EntityType: "user",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return nil
}

// GetUser loads the public projection of one user.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (UserInfo, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserInfo{}, NotFound("User not found")
		}
		return UserInfo{}, err
	}
	return NewUserInfo(user), nil
}

func (s *AuthService) openSession(ctx context.Context, user *model.User, meta RequestMeta) (AuthResult, error) {
	pair, err := s.Sessions.Create(ctx, user, meta.UserAgent, meta.IPAddress)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: NewUserInfo(user), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}
