package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/repository"
	"github.com/iliyamo/todo-api/internal/utils"
)

// AdminUserInfo extends the public projection with record timestamps for
// the admin listing.
type AdminUserInfo struct {
	UserInfo
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserPatch is the admin update payload; nil fields are left unchanged.
// UnlinkLocal removes the local identity block, the only place in the
// system where that block can be detached.
type UserPatch struct {
	FullName      *string
	Username      *string
	Password      *string
	Role          *model.Role
	EmailVerified *bool
	UnlinkLocal   bool
}

// AdminService implements the privileged user-management surface. Every
// operation re-checks the policy against the actor's and target's roles
// loaded server-side; nothing about roles is trusted from the request.
type AdminService struct {
	Users  UserStore
	Policy Policy
	Audit  Auditor
	Hash   utils.Argon2Params
}

// ListUsers returns all users for the admin listing.
func (s *AdminService) ListUsers(ctx context.Context, actorRole model.Role) ([]AdminUserInfo, error) {
	if err := s.Policy.CanViewUsers(actorRole); err != nil {
		return nil, err
	}
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AdminUserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, AdminUserInfo{UserInfo: NewUserInfo(u), CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt})
	}
	return out, nil
}

// GetUser returns one user's detail view.
func (s *AdminService) GetUser(ctx context.Context, actorRole model.Role, targetID uuid.UUID) (AdminUserInfo, error) {
	if err := s.Policy.CanViewUsers(actorRole); err != nil {
		return AdminUserInfo{}, err
	}
	u, err := s.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUserInfo{}, NotFound("User not found")
		}
		return AdminUserInfo{}, err
	}
	return AdminUserInfo{UserInfo: NewUserInfo(u), CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}, nil
}

// UpdateUser applies an admin patch to a user. Admins cannot touch
// sysadmins, and only sysadmins can promote anyone to sysadmin.
func (s *AdminService) UpdateUser(ctx context.Context, actorID uuid.UUID, actorRole model.Role, targetID uuid.UUID, patch UserPatch, meta RequestMeta) (AdminUserInfo, error) {
	target, err := s.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUserInfo{}, NotFound("User not found")
		}
		return AdminUserInfo{}, err
	}
	if err := s.Policy.CanModifyUser(actorRole, target.Role); err != nil {
		return AdminUserInfo{}, err
	}

	changed := map[string]any{}
	if patch.Username != nil {
		username := normalizeIdentifier(*patch.Username)
		if username == "" {
			return AdminUserInfo{}, BadRequest("Username cannot be empty")
		}
		if existing, err := s.Users.GetByLocalUsername(ctx, username); err == nil {
			if existing.ID != targetID {
				return AdminUserInfo{}, BadRequest("Username already in use")
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return AdminUserInfo{}, err
		}
		target.LocalUsername = &username
		changed["username"] = username
	}
	if patch.Password != nil {
		if v := utils.ValidatePasswordStrength(*patch.Password, target.Email()); !v.Valid {
			return AdminUserInfo{}, &Error{
				Kind:    KindBadRequest,
				Message: "Password does not meet security requirements",
				Details: v.Errors,
			}
		}
		hash, err := utils.HashPassword(s.Hash, *patch.Password)
		if err != nil {
			return AdminUserInfo{}, err
		}
		target.LocalPasswordHash = &hash
		changed["password"] = true
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return AdminUserInfo{}, BadRequest("Full name cannot be empty")
		}
		target.FullName = name
		changed["full_name"] = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return AdminUserInfo{}, BadRequest("Invalid role")
		}
		if err := s.Policy.CanAssignRole(actorRole, *patch.Role); err != nil {
			return AdminUserInfo{}, err
		}
		target.Role = *patch.Role
		changed["role"] = string(*patch.Role)
	}
	if patch.EmailVerified != nil {
		if *patch.EmailVerified && target.EmailVerifiedAt == nil {
			now := time.Now().UTC()
			target.EmailVerifiedAt = &now
		} else if !*patch.EmailVerified {
			target.EmailVerifiedAt = nil
		}
		changed["email_verified"] = *patch.EmailVerified
	}
	if patch.UnlinkLocal {
		if !target.HasLocal() {
			return AdminUserInfo{}, BadRequest("Local account is not linked")
		}
		if !target.HasGoogle() && !target.HasMicrosoft() {
			return AdminUserInfo{}, BadRequest("Cannot unlink local account - user must have at least one identity")
		}
		target.LocalEnabled = false
		target.LocalUsername = nil
		target.LocalPasswordHash = nil
		changed["unlink_local"] = true
	}

	if err := s.Users.Update(ctx, target); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return AdminUserInfo{}, Conflict("Username already in use")
		}
		return AdminUserInfo{}, err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &actorID, Action: model.AuditUserUpdated, EntityType: "user", EntityID: &targetID,
		Meta:      changed,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return AdminUserInfo{UserInfo: NewUserInfo(target), CreatedAt: target.CreatedAt, UpdatedAt: target.UpdatedAt}, nil
}

// DeleteUser removes a user through the admin path. Self-deletion is
// rejected here; accounts remove themselves via the self-service route.
func (s *AdminService) DeleteUser(ctx context.Context, actorID uuid.UUID, actorRole model.Role, targetID uuid.UUID, meta RequestMeta) error {
	target, err := s.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}
	if err := s.Policy.CanDeleteUser(actorID, actorRole, targetID, target.Role); err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, targetID); err != nil {
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &actorID, Action: model.AuditUserDeleted, EntityType: "user", EntityID: &targetID,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return nil
}
