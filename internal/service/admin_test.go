package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/utils"
)

func newAdminTestService(env *testEnv) *AdminService {
	return &AdminService{
		Users: env.users,
		Audit: env.audit,
		Hash:  utils.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	}
}

func strP(s string) *string { return &s }

func TestAdminUpdateUser_Username(t *testing.T) {
	env := newTestEnv()
	admin := newAdminTestService(env)
	ctx := context.Background()
	info := register(t, env, testEmail, true)

	updated, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{Username: strP("  NEW.Name@Example.COM ")}, noMeta)
	require.NoError(t, err)
	require.NotNil(t, updated.LocalUsername)
	assert.Equal(t, "new.name@example.com", *updated.LocalUsername)

	// The renamed credential logs in; the old one is gone.
	_, err = env.auth.Login(ctx, "new.name@example.com", testPassword, noMeta)
	assert.NoError(t, err)
	_, err = env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestAdminUpdateUser_UsernameTaken(t *testing.T) {
	env := newTestEnv()
	admin := newAdminTestService(env)
	ctx := context.Background()
	a := register(t, env, "a@example.com", true)
	b := register(t, env, "b@example.com", true)

	_, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, b.ID,
		UserPatch{Username: strP("a@example.com")}, noMeta)
	assert.True(t, IsKind(err, KindBadRequest))

	// Renaming to your own current username is a no-op, not a conflict.
	_, err = admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, a.ID,
		UserPatch{Username: strP("a@example.com")}, noMeta)
	assert.NoError(t, err)

	_, err = admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, b.ID,
		UserPatch{Username: strP("   ")}, noMeta)
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestAdminUpdateUser_Password(t *testing.T) {
	env := newTestEnv()
	admin := newAdminTestService(env)
	ctx := context.Background()
	info := register(t, env, testEmail, true)

	_, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{Password: strP("qwerty")}, noMeta)
	require.Error(t, err)
	se, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, se.Kind)
	assert.NotEmpty(t, se.Details)

	_, err = admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{Password: strP("a replacement passphrase")}, noMeta)
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, testEmail, "a replacement passphrase", noMeta)
	assert.NoError(t, err)
	_, err = env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestAdminUpdateUser_UnlinkLocal(t *testing.T) {
	env := newTestEnv()
	admin := newAdminTestService(env)
	ctx := context.Background()
	info := register(t, env, testEmail, true)

	// Local is the only identity block; unlinking would strand the account.
	_, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{UnlinkLocal: true}, noMeta)
	assert.True(t, IsKind(err, KindBadRequest))

	require.NoError(t, env.auth.LinkGoogle(ctx, info.ID, "g-sub-1", "alice@gmail.com", noMeta))

	updated, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{UnlinkLocal: true}, noMeta)
	require.NoError(t, err)
	assert.Nil(t, updated.LocalUsername)

	// The local credential is dead; the Google identity still works.
	_, err = env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))
	again, err := env.auth.LoginWithGoogle(ctx, "g-sub-1", "alice@gmail.com", "Alice", noMeta)
	require.NoError(t, err)
	assert.Equal(t, info.ID, again.User.ID)

	// Already unlinked.
	_, err = admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{UnlinkLocal: true}, noMeta)
	assert.True(t, IsKind(err, KindBadRequest))

	assert.Contains(t, env.audit.actions(), model.AuditUserUpdated)
}

func TestAdminUpdateUser_AdminCannotTouchSysadmin(t *testing.T) {
	env := newTestEnv()
	admin := newAdminTestService(env)
	ctx := context.Background()
	info := register(t, env, testEmail, true)

	_, err := admin.UpdateUser(ctx, uuid.New(), model.RoleSysadmin, info.ID,
		UserPatch{Role: roleP(model.RoleSysadmin)}, noMeta)
	require.NoError(t, err)

	_, err = admin.UpdateUser(ctx, uuid.New(), model.RoleAdmin, info.ID,
		UserPatch{FullName: strP("Renamed")}, noMeta)
	assert.True(t, IsKind(err, KindForbidden))
}

func roleP(r model.Role) *model.Role { return &r }
