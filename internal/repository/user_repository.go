package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// UserRepo persists user identity records in the `users` table. The three
// uniqueness invariants (local_username, google_sub, (ms_tid, ms_oid)) are
// enforced by unique indexes; violations come back as ErrDuplicate.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, full_name, role, email_verified_at,
	local_enabled, local_username, local_password_hash,
	google_sub, google_email, ms_oid, ms_tid, ms_email,
	created_at, updated_at`

// Create inserts a fully-populated user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID.String(), u.FullName, string(u.Role), u.EmailVerifiedAt,
		u.LocalEnabled, u.LocalUsername, u.LocalPasswordHash,
		u.GoogleSub, u.GoogleEmail, u.MSOid, u.MSTid, u.MSEmail,
		u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Update rewrites every mutable column of an existing user row.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET full_name=?, role=?, email_verified_at=?,
		 local_enabled=?, local_username=?, local_password_hash=?,
		 google_sub=?, google_email=?, ms_oid=?, ms_tid=?, ms_email=?,
		 updated_at=? WHERE id=?`,
		u.FullName, string(u.Role), u.EmailVerifiedAt,
		u.LocalEnabled, u.LocalUsername, u.LocalPasswordHash,
		u.GoogleSub, u.GoogleEmail, u.MSOid, u.MSTid, u.MSEmail,
		u.UpdatedAt, u.ID.String())
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes a user row. Sessions, one-time tokens and todos cascade
// at the schema level.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id.String())
	return err
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id.String())
}

// GetByLocalUsername fetches a user by normalized local username.
func (r *UserRepo) GetByLocalUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE local_username=? LIMIT 1", username)
}

// GetByGoogleSub fetches a user by Google subject id.
func (r *UserRepo) GetByGoogleSub(ctx context.Context, sub string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE google_sub=? LIMIT 1", sub)
}

// GetByMicrosoft fetches a user by the (tid, oid) composite key.
func (r *UserRepo) GetByMicrosoft(ctx context.Context, oid, tid string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE ms_oid=? AND ms_tid=? LIMIT 1", oid, tid)
}

// List returns all users ordered by creation time (admin listing).
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, query, args...))
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanUser(s scanner) (*model.User, error) {
	var (
		u          model.User
		id         string
		role       string
		verifiedAt sql.NullTime
		username   sql.NullString
		pwHash     sql.NullString
		gSub       sql.NullString
		gEmail     sql.NullString
		msOid      sql.NullString
		msTid      sql.NullString
		msEmail    sql.NullString
	)
	err := s.Scan(&id, &u.FullName, &role, &verifiedAt,
		&u.LocalEnabled, &username, &pwHash,
		&gSub, &gEmail, &msOid, &msTid, &msEmail,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.EmailVerifiedAt = timePtr(verifiedAt)
	u.LocalUsername = strPtr(username)
	u.LocalPasswordHash = strPtr(pwHash)
	u.GoogleSub = strPtr(gSub)
	u.GoogleEmail = strPtr(gEmail)
	u.MSOid = strPtr(msOid)
	u.MSTid = strPtr(msTid)
	u.MSEmail = strPtr(msEmail)
	return &u, nil
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
