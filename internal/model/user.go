package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the application role stored on a user row. Roles form a total
// order: Guest < Admin < Sysadmin.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleAdmin    Role = "admin"
	RoleSysadmin Role = "sysadmin"
)

// rank maps roles onto the ordering used by authorization checks. Unknown
// roles rank below guest so a corrupted row can never gain privileges.
func (r Role) rank() int {
	switch r {
	case RoleGuest:
		return 1
	case RoleAdmin:
		return 2
	case RoleSysadmin:
		return 3
	}
	return 0
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.rank() > 0 }

// User mirrors the `users` table. A user is a person-level account that
// carries up to three identity blocks (local, Google, Microsoft); at least
// one block must be present at all times. The email address is derived
// from the identity blocks and never stored.
type User struct {
	ID              uuid.UUID  // users.id
	FullName        string     // users.full_name
	Role            Role       // users.role
	EmailVerifiedAt *time.Time // users.email_verified_at (nullable)

	// Local identity block.
	LocalEnabled      bool    // users.local_enabled
	LocalUsername     *string // users.local_username (unique when set)
	LocalPasswordHash *string // users.local_password_hash

	// Google identity block.
	GoogleSub   *string // users.google_sub (unique when set)
	GoogleEmail *string // users.google_email

	// Microsoft identity block; (ms_tid, ms_oid) is unique as a pair.
	MSOid   *string // users.ms_oid
	MSTid   *string // users.ms_tid
	MSEmail *string // users.ms_email

	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// Email derives the user's address from the identity blocks: first
// non-empty of local username, Google email, Microsoft email. Recomputed
// on every read so it can never drift from the blocks.
func (u *User) Email() string {
	switch {
	case u.LocalUsername != nil && *u.LocalUsername != "":
		return *u.LocalUsername
	case u.GoogleEmail != nil && *u.GoogleEmail != "":
		return *u.GoogleEmail
	case u.MSEmail != nil && *u.MSEmail != "":
		return *u.MSEmail
	}
	return ""
}

// HasLocal reports whether the local identity block is populated.
func (u *User) HasLocal() bool {
	return u.LocalEnabled && u.LocalUsername != nil && *u.LocalUsername != ""
}

// HasGoogle reports whether the Google identity block is populated.
func (u *User) HasGoogle() bool {
	return u.GoogleSub != nil && *u.GoogleSub != ""
}

// HasMicrosoft reports whether the Microsoft identity block is populated.
func (u *User) HasMicrosoft() bool {
	return u.MSOid != nil && *u.MSOid != "" && u.MSTid != nil && *u.MSTid != ""
}

// IdentityCount returns how many identity blocks are attached. Unlink and
// merge operations must never drive this to zero.
func (u *User) IdentityCount() int {
	n := 0
	if u.HasLocal() {
		n++
	}
	if u.HasGoogle() {
		n++
	}
	if u.HasMicrosoft() {
		n++
	}
	return n
}

// EmailVerified reports whether the user completed email verification.
func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// RefreshSession models a row in `refresh_token_sessions`. One row per
// issued refresh token; the plain token is never stored, only its SHA-256
// hash. Rows are revoked on rotation, logout and password change, never
// deleted, so a replayed token can be recognized as already rotated.
type RefreshSession struct {
	ID               uuid.UUID  // refresh_token_sessions.id
	UserID           uuid.UUID  // refresh_token_sessions.user_id
	RefreshTokenHash string     // refresh_token_sessions.refresh_token_hash
	UserAgent        string     // refresh_token_sessions.user_agent
	IPAddress        string     // refresh_token_sessions.ip_address
	ExpiresAt        time.Time  // refresh_token_sessions.expires_at
	RevokedAt        *time.Time // refresh_token_sessions.revoked_at (nullable)
	CreatedAt        time.Time  // refresh_token_sessions.created_at
}

// Usable reports whether the session can still be exchanged: not revoked
// and not past its expiry.
func (s *RefreshSession) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// PasswordResetToken models a row in `password_reset_tokens`. Single-use,
// hashed at rest, at most one active token per user.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EmailVerificationToken models a row in `email_verification_tokens`.
type EmailVerificationToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}
