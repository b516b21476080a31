package service

import (
	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// Policy is the role authorization policy. All checks are pure functions
// over the actor's and target's current roles; nothing is trusted from
// client input. Roles order as Guest < Admin < Sysadmin.
type Policy struct{}

// CheckRole reports whether role is one of the required roles.
func CheckRole(role model.Role, required ...model.Role) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// CanViewUsers gates the admin user listing and user detail views.
func (Policy) CanViewUsers(actor model.Role) error {
	if !CheckRole(actor, model.RoleAdmin, model.RoleSysadmin) {
		return Forbidden("Admin access required")
	}
	return nil
}

// CanModifyUser gates updates and deletes through the admin path. Admins
// may not touch sysadmin accounts; sysadmins may touch anyone.
func (Policy) CanModifyUser(actor, target model.Role) error {
	if !CheckRole(actor, model.RoleAdmin, model.RoleSysadmin) {
		return Forbidden("Admin access required")
	}
	if actor == model.RoleAdmin && target == model.RoleSysadmin {
		return Forbidden("Admins cannot modify sysadmin users")
	}
	return nil
}

// CanAssignRole gates role changes. Promoting anyone to sysadmin requires
// the actor to already be a sysadmin, independent of the target check.
func (Policy) CanAssignRole(actor, newRole model.Role) error {
	if newRole == model.RoleSysadmin && actor != model.RoleSysadmin {
		return Forbidden("Admins cannot promote users to sysadmin role")
	}
	return nil
}

// CanDeleteUser additionally rejects self-deletion through the admin
// path; accounts delete themselves via the self-service endpoint.
func (p Policy) CanDeleteUser(actorID uuid.UUID, actor model.Role, targetID uuid.UUID, target model.Role) error {
	if err := p.CanModifyUser(actor, target); err != nil {
		return err
	}
	if actorID == targetID {
		return BadRequest("Cannot delete your own account through the admin path")
	}
	return nil
}

// CanMergeAccounts gates the merge operation.
func (Policy) CanMergeAccounts(actor model.Role) error {
	if !CheckRole(actor, model.RoleSysadmin) {
		return Forbidden("System admin access required")
	}
	return nil
}

// CanAccessTodo allows owners always and admins for everything.
func (Policy) CanAccessTodo(actorID uuid.UUID, actor model.Role, ownerID uuid.UUID) error {
	if actorID == ownerID || actor.AtLeast(model.RoleAdmin) {
		return nil
	}
	return Forbidden("forbidden")
}
