package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// SessionRepo persists refresh token sessions. Rows are revoked, never
// deleted, so a rotated token can be recognized when replayed.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row. The hash may be a placeholder; the caller
// fills it in via UpdateHash once the token embedding this row's id has
// been signed.
func (r *SessionRepo) Create(ctx context.Context, s *model.RefreshSession) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_token_sessions
		 (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		s.ID.String(), s.UserID.String(), s.RefreshTokenHash,
		s.UserAgent, s.IPAddress, s.ExpiresAt, s.CreatedAt)
	return err
}

// UpdateHash stores the digest of the issued refresh token on its row.
func (r *SessionRepo) UpdateHash(ctx context.Context, id uuid.UUID, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_token_sessions SET refresh_token_hash=? WHERE id=?",
		tokenHash, id.String())
	return err
}

// GetByHash looks a session up by token digest.
func (r *SessionRepo) GetByHash(ctx context.Context, tokenHash string) (*model.RefreshSession, error) {
	var (
		s         model.RefreshSession
		id        string
		userID    string
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, refresh_token_hash, user_agent, ip_address,
		 expires_at, revoked_at, created_at
		 FROM refresh_token_sessions WHERE refresh_token_hash=? LIMIT 1`,
		tokenHash).Scan(&id, &userID, &s.RefreshTokenHash, &s.UserAgent,
		&s.IPAddress, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	s.RevokedAt = timePtr(revokedAt)
	return &s, nil
}

// Revoke marks a single session revoked. Already-revoked rows are left
// untouched so the call stays idempotent.
func (r *SessionRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_token_sessions SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
		time.Now().UTC(), id.String())
	return err
}

// RevokeAllForUser revokes every active session of a user. Called on
// password change and reset to invalidate all outstanding refresh tokens.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_token_sessions SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		time.Now().UTC(), userID.String())
	return err
}
