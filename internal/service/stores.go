package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// Store interfaces consumed by the services. The repository package
// provides the MySQL implementations; tests substitute in-memory fakes.
// Implementations signal "no row" with sql.ErrNoRows and uniqueness
// violations with repository.ErrDuplicate.

// UserStore is the identity persistence surface.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByLocalUsername(ctx context.Context, username string) (*model.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*model.User, error)
	GetByMicrosoft(ctx context.Context, oid, tid string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

// SessionStore persists refresh token sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.RefreshSession) error
	UpdateHash(ctx context.Context, id uuid.UUID, tokenHash string) error
	GetByHash(ctx context.Context, tokenHash string) (*model.RefreshSession, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// TodoStore persists todo items.
type TodoStore interface {
	Create(ctx context.Context, t *model.Todo) error
	Update(ctx context.Context, t *model.Todo) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Todo, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Todo, error)
	ListAll(ctx context.Context) ([]*model.Todo, error)
}

// OneTimeTokenStore persists password reset and email verification
// tokens.
type OneTimeTokenStore interface {
	CreatePasswordReset(ctx context.Context, t *model.PasswordResetToken) error
	GetPasswordResetByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
	MarkPasswordResetUsed(ctx context.Context, id uuid.UUID) error
	CreateEmailVerification(ctx context.Context, t *model.EmailVerificationToken) error
	GetEmailVerificationByHash(ctx context.Context, tokenHash string) (*model.EmailVerificationToken, error)
	MarkEmailVerified(ctx context.Context, tokenID, userID uuid.UUID) error
}
