package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// TokenRepo persists the single-use password reset and email verification
// tokens. Issuing a new token deletes prior ones for the same user, so at
// most one token per user per purpose is ever active.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// CreatePasswordReset replaces any existing reset tokens for the user.
func (r *TokenRepo) CreatePasswordReset(ctx context.Context, t *model.PasswordResetToken) error {
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE user_id=?", t.UserID.String()); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES (?,?,?,?,?)`,
		t.ID.String(), t.UserID.String(), t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

// GetPasswordResetByHash returns an unused reset token by digest.
func (r *TokenRepo) GetPasswordResetByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	var (
		t      model.PasswordResetToken
		id     string
		userID string
		usedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at
		 FROM password_reset_tokens WHERE token_hash=? AND used_at IS NULL LIMIT 1`,
		tokenHash).Scan(&id, &userID, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	t.UsedAt = timePtr(usedAt)
	return &t, nil
}

// MarkPasswordResetUsed stamps a reset token as consumed.
func (r *TokenRepo) MarkPasswordResetUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=? WHERE id=? AND used_at IS NULL",
		time.Now().UTC(), id.String())
	return err
}

// CreateEmailVerification replaces any existing verification tokens for
// the user.
func (r *TokenRepo) CreateEmailVerification(ctx context.Context, t *model.EmailVerificationToken) error {
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM email_verification_tokens WHERE user_id=?", t.UserID.String()); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO email_verification_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES (?,?,?,?,?)`,
		t.ID.String(), t.UserID.String(), t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

// GetEmailVerificationByHash returns a verification token by digest,
// including already-verified ones so the caller can answer idempotently.
func (r *TokenRepo) GetEmailVerificationByHash(ctx context.Context, tokenHash string) (*model.EmailVerificationToken, error) {
	var (
		t          model.EmailVerificationToken
		id         string
		userID     string
		verifiedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, verified_at, created_at
		 FROM email_verification_tokens WHERE token_hash=? LIMIT 1`,
		tokenHash).Scan(&id, &userID, &t.TokenHash, &t.ExpiresAt, &verifiedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	t.VerifiedAt = timePtr(verifiedAt)
	return &t, nil
}

// MarkEmailVerified stamps a verification token and the owning user's
// email_verified_at inside one transaction, so neither can be observed
// without the other.
func (r *TokenRepo) MarkEmailVerified(ctx context.Context, tokenID, userID uuid.UUID) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE email_verification_tokens SET verified_at=? WHERE id=?",
		now, tokenID.String()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET email_verified_at=?, updated_at=? WHERE id=? AND email_verified_at IS NULL",
		now, now, userID.String()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
