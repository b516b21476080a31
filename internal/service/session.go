package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/utils"
)

// TokenPair is the access/refresh pair returned by login and rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionManager issues token pairs bound to persisted session rows and
// performs rotation with reuse detection. Every refresh token is
// one-time-use: rotating it revokes its session and issues a replacement.
type SessionManager struct {
	Sessions       SessionStore
	Users          UserStore
	AccessSecret   string
	RefreshSecret  string
	AccessTTLMin   int
	RefreshTTLDays int
}

// Create persists a new session and issues a token pair for it. The row
// is inserted with a placeholder hash first, because the refresh token
// embeds the session id; once the token is signed the row is updated with
// its digest. The stored hash therefore always matches an already-issued
// token.
func (m *SessionManager) Create(ctx context.Context, user *model.User, userAgent, ipAddress string) (TokenPair, error) {
	now := time.Now().UTC()
	sess := &model.RefreshSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: "",
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		ExpiresAt:        now.Add(time.Duration(m.RefreshTTLDays) * 24 * time.Hour),
		CreatedAt:        now,
	}
	if err := m.Sessions.Create(ctx, sess); err != nil {
		return TokenPair{}, err
	}

	refresh, err := utils.NewRefreshToken(m.RefreshSecret, user.ID, sess.ID, m.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.Sessions.UpdateHash(ctx, sess.ID, utils.HashToken(refresh)); err != nil {
		return TokenPair{}, err
	}

	access, err := utils.NewAccessToken(m.AccessSecret, user.ID, user.Email(), user.Role, m.AccessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate exchanges a refresh token for a fresh pair. The old session is
// revoked before the replacement is created; should the process crash in
// between, the client is forced to log in again rather than the old token
// staying usable. A token whose session is already revoked was rotated
// before: replaying it is the reuse signal and is rejected.
func (m *SessionManager) Rotate(ctx context.Context, refreshToken, userAgent, ipAddress string) (TokenPair, *model.User, error) {
	if _, err := utils.VerifyRefreshToken(m.RefreshSecret, refreshToken); err != nil {
		return TokenPair{}, nil, Unauthorized("Invalid refresh token")
	}

	sess, err := m.Sessions.GetByHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenPair{}, nil, Unauthorized("Invalid refresh token")
		}
		return TokenPair{}, nil, err
	}
	if !sess.Usable(time.Now().UTC()) {
		return TokenPair{}, nil, Unauthorized("Invalid refresh token")
	}

	user, err := m.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenPair{}, nil, Unauthorized("Invalid refresh token")
		}
		return TokenPair{}, nil, err
	}

	if err := m.Sessions.Revoke(ctx, sess.ID); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := m.Create(ctx, user, userAgent, ipAddress)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Revoke marks the session behind a refresh token revoked. Logout is
// best-effort: unknown or already-revoked tokens are not errors. The
// owning user id is returned when known, for audit logging.
func (m *SessionManager) Revoke(ctx context.Context, refreshToken string) (*uuid.UUID, error) {
	sess, err := m.Sessions.GetByHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if sess.RevokedAt != nil {
		return &sess.UserID, nil
	}
	if err := m.Sessions.Revoke(ctx, sess.ID); err != nil {
		return nil, err
	}
	return &sess.UserID, nil
}

// RevokeAll revokes every active session of a user.
func (m *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return m.Sessions.RevokeAllForUser(ctx, userID)
}
