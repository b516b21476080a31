package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the identity core. Stored as plain strings in
// `audit_logs.action`.
const (
	AuditRegister              = "REGISTER"
	AuditLoginSuccess          = "LOGIN_SUCCESS"
	AuditLoginFailure          = "LOGIN_FAILURE"
	AuditLogout                = "LOGOUT"
	AuditRefreshTokenRotated   = "REFRESH_TOKEN_ROTATED"
	AuditEmailVerified         = "EMAIL_VERIFIED"
	AuditPasswordResetRequest  = "PASSWORD_RESET_REQUESTED"
	AuditPasswordReset         = "PASSWORD_RESET"
	AuditPasswordChanged       = "PASSWORD_CHANGED"
	AuditAccountDeleted        = "ACCOUNT_DELETED"
	AuditGoogleRegister        = "GOOGLE_REGISTER"
	AuditGoogleLoginSuccess    = "GOOGLE_LOGIN_SUCCESS"
	AuditGoogleEmailUpdated    = "GOOGLE_EMAIL_UPDATED"
	AuditGoogleLinked          = "GOOGLE_LINKED"
	AuditGoogleUnlinked        = "GOOGLE_UNLINKED"
	AuditMicrosoftRegister     = "MICROSOFT_REGISTER"
	AuditMicrosoftLoginSuccess = "MICROSOFT_LOGIN_SUCCESS"
	AuditMicrosoftEmailUpdated = "MICROSOFT_EMAIL_UPDATED"
	AuditMicrosoftLinked       = "MICROSOFT_LINKED"
	AuditMicrosoftUnlinked     = "MICROSOFT_UNLINKED"
	AuditAccountsMerged        = "ACCOUNTS_MERGED"
	AuditUserUpdated           = "USER_UPDATED"
	AuditUserDeleted           = "USER_DELETED"
)

// AuditEvent is the write-only record handed to the audit sink. UserID is
// nil for anonymous failures (e.g. login with an unknown identifier).
type AuditEvent struct {
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID     `json:"entity_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
