package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-api/internal/model"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "a sturdy passphrase"
)

var noMeta = RequestMeta{UserAgent: "test", IPAddress: "127.0.0.1"}

// register creates a user through the service; when verified is true the
// mailed token is redeemed as well.
func register(t *testing.T, env *testEnv, email string, verified bool) UserInfo {
	t.Helper()
	ctx := context.Background()
	info, err := env.auth.Register(ctx, email, testPassword, "Alice", false, model.RoleGuest, noMeta)
	require.NoError(t, err)
	if verified {
		token := env.email.verificationToken(email)
		require.NotEmpty(t, token, "expected a verification email")
		_, err = env.auth.VerifyEmail(ctx, token, noMeta)
		require.NoError(t, err)
	}
	return info
}

func TestRegister_NormalizesIdentifierAndDefaultsToGuest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	info, err := env.auth.Register(ctx, "  ALICE@Example.COM ", testPassword, "Alice", false, model.RoleGuest, noMeta)
	require.NoError(t, err)
	assert.Equal(t, testEmail, info.Email)
	assert.Equal(t, model.RoleGuest, info.Role)
	assert.False(t, info.EmailVerified)
	assert.NotEmpty(t, env.email.verificationToken(testEmail))
}

func TestRegister_WeakPasswordCollectsAllViolations(t *testing.T) {
	env := newTestEnv()

	_, err := env.auth.Register(context.Background(), testEmail, "qwerty", "Alice", false, model.RoleGuest, noMeta)
	require.Error(t, err)
	se, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, se.Kind)
	assert.Len(t, se.Details, 2) // too short and too common
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, false)

	_, err := env.auth.Register(context.Background(), testEmail, testPassword, "Other", false, model.RoleGuest, noMeta)
	assert.True(t, IsKind(err, KindConflict))
}

func TestRegister_AutoverifySkipsEmail(t *testing.T) {
	env := newTestEnv()

	info, err := env.auth.Register(context.Background(), testEmail, testPassword, "Alice", true, model.RoleGuest, noMeta)
	require.NoError(t, err)
	assert.True(t, info.EmailVerified)
	assert.Empty(t, env.email.verificationToken(testEmail))
}

func TestLogin_HappyPath(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, true)

	res, err := env.auth.Login(context.Background(), testEmail, testPassword, noMeta)
	require.NoError(t, err)
	assert.Equal(t, testEmail, res.User.Email)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Contains(t, env.audit.actions(), model.AuditLoginSuccess)
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, true)
	ctx := context.Background()

	_, unknownErr := env.auth.Login(ctx, "nobody@example.com", testPassword, noMeta)
	_, wrongErr := env.auth.Login(ctx, testEmail, "wrong password", noMeta)

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	// Unknown identifier and bad password are indistinguishable.
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.True(t, IsKind(unknownErr, KindUnauthorized))
	assert.True(t, IsKind(wrongErr, KindUnauthorized))
}

func TestLogin_UnverifiedEmailForbidden(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, false)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.True(t, IsKind(err, KindForbidden))

	// Redeeming the token unblocks the login.
	_, err = env.auth.VerifyEmail(ctx, env.email.verificationToken(testEmail), noMeta)
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.NoError(t, err)
}

func TestVerifyEmail_Idempotent(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, false)
	ctx := context.Background()
	token := env.email.verificationToken(testEmail)

	already, err := env.auth.VerifyEmail(ctx, token, noMeta)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = env.auth.VerifyEmail(ctx, token, noMeta)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestVerifyEmail_UnknownToken(t *testing.T) {
	env := newTestEnv()
	_, err := env.auth.VerifyEmail(context.Background(), "no-such-token", noMeta)
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv()
	info := register(t, env, testEmail, false)
	ctx := context.Background()

	first := env.email.verificationToken(testEmail)
	require.NoError(t, env.auth.ResendVerification(ctx, info.ID))
	second := env.email.verificationToken(testEmail)
	assert.NotEqual(t, first, second)

	// The superseded token no longer works.
	_, err := env.auth.VerifyEmail(ctx, first, noMeta)
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = env.auth.VerifyEmail(ctx, second, noMeta)
	require.NoError(t, err)
	assert.True(t, IsKind(env.auth.ResendVerification(ctx, info.ID), KindBadRequest))
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv()
	register(t, env, testEmail, true)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, testEmail, testPassword, noMeta)
	require.NoError(t, err)

	rotated, err := env.auth.Refresh(ctx, res.RefreshToken, noMeta)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)

	// Logout succeeds for live, dead and unknown tokens alike.
	require.NoError(t, env.auth.Logout(ctx, rotated.RefreshToken, noMeta))
	require.NoError(t, env.auth.Logout(ctx, rotated.RefreshToken, noMeta))
	require.NoError(t, env.auth.Logout(ctx, "never-issued", noMeta))

	_, err = env.auth.Refresh(ctx, rotated.RefreshToken, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))
}

func TestPasswordReset_FlowRevokesSessions(t *testing.T) {
	env := newTestEnv()
	info := register(t, env, testEmail, true)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, testEmail, testPassword, noMeta)
	require.NoError(t, err)
	require.Equal(t, 1, env.sessions.active(info.ID))

	require.NoError(t, env.auth.RequestPasswordReset(ctx, testEmail, noMeta))
	token := env.email.resetToken(testEmail)
	require.NotEmpty(t, token)

	const newPassword = "an even sturdier one"
	require.NoError(t, env.auth.ResetPassword(ctx, token, newPassword, noMeta))

	// Every pre-reset session is dead.
	assert.Equal(t, 0, env.sessions.active(info.ID))
	_, err = env.auth.Refresh(ctx, res.RefreshToken, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))

	// Old password out, new password in.
	_, err = env.auth.Login(ctx, testEmail, testPassword, noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))
	_, err = env.auth.Login(ctx, testEmail, newPassword, noMeta)
	assert.NoError(t, err)

	// The token is single-use.
	err = env.auth.ResetPassword(ctx, token, "yet another passphrase", noMeta)
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestRequestPasswordReset_UnknownIdentifierSilent(t *testing.T) {
	env := newTestEnv()
	err := env.auth.RequestPasswordReset(context.Background(), "ghost@example.com", noMeta)
	assert.NoError(t, err)
	assert.Empty(t, env.email.resetToken("ghost@example.com"))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv()
	info := register(t, env, testEmail, true)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, testEmail, testPassword, noMeta)
	require.NoError(t, err)

	err = env.auth.ChangePassword(ctx, info.ID, "wrong current", "does not matter 123", noMeta)
	assert.True(t, IsKind(err, KindUnauthorized))

	const newPassword = "fresh sturdy passphrase"
	require.NoError(t, env.auth.ChangePassword(ctx, info.ID, testPassword, newPassword, noMeta))
	assert.Equal(t, 0, env.sessions.active(info.ID))

	_, err = env.auth.Login(ctx, testEmail, newPassword, noMeta)
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	info := register(t, env, testEmail, true)
	ctx := context.Background()

	updated, err := env.auth.UpdateProfile(ctx, info.ID, "Alice Cooper", noMeta)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", updated.FullName)

	_, err = env.auth.UpdateProfile(ctx, info.ID, "   ", noMeta)
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv()
	info := register(t, env, testEmail, true)
	ctx := context.Background()

	require.NoError(t, env.auth.DeleteAccount(ctx, info.ID, noMeta))
	_, err := env.auth.GetUser(ctx, info.ID)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Contains(t, env.audit.actions(), model.AuditAccountDeleted)
}
