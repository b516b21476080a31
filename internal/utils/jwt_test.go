package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-api/internal/model"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
	testStateSecret   = "state-secret-for-tests"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	uid := uuid.New()
	raw, err := NewAccessToken(testAccessSecret, uid, "user@example.com", model.RoleAdmin, 15)
	require.NoError(t, err)

	claims, err := VerifyAccessToken(testAccessSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestAccessToken_Expired(t *testing.T) {
	raw, err := NewAccessToken(testAccessSecret, uuid.New(), "u@e.com", model.RoleGuest, -1)
	require.NoError(t, err)

	_, err = VerifyAccessToken(testAccessSecret, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	raw, err := NewAccessToken(testAccessSecret, uuid.New(), "u@e.com", model.RoleGuest, 15)
	require.NoError(t, err)

	_, err = VerifyAccessToken("some other secret", raw)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestAccessToken_Garbage(t *testing.T) {
	_, err := VerifyAccessToken(testAccessSecret, "not.a.token")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

// Each token class signs with its own key, so a token from one keyspace
// must never validate in another.
func TestKeyspaceSeparation(t *testing.T) {
	uid := uuid.New()

	access, err := NewAccessToken(testAccessSecret, uid, "u@e.com", model.RoleGuest, 15)
	require.NoError(t, err)
	refresh, err := NewRefreshToken(testRefreshSecret, uid, uuid.New(), 7)
	require.NoError(t, err)

	_, err = VerifyRefreshToken(testRefreshSecret, access)
	assert.Error(t, err, "access token must not pass refresh verification")

	_, err = VerifyAccessToken(testAccessSecret, refresh)
	assert.Error(t, err, "refresh token must not pass access verification")
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	uid, sid := uuid.New(), uuid.New()
	raw, err := NewRefreshToken(testRefreshSecret, uid, sid, 7)
	require.NoError(t, err)

	claims, err := VerifyRefreshToken(testRefreshSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, sid, claims.SessionID)
}

func TestStateToken_RoundTrip(t *testing.T) {
	raw, err := NewStateToken(testStateSecret, StateClaims{
		Redirect:      "https://app.example.com/after",
		Frontend:      "https://app.example.com",
		Mode:          StateModeLink,
		CurrentUserID: uuid.New().String(),
	})
	require.NoError(t, err)

	s, err := VerifyStateToken(testStateSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, StateModeLink, s.Mode)
	assert.Equal(t, "https://app.example.com/after", s.Redirect)
	assert.NotEmpty(t, s.CurrentUserID)
}

func TestStateToken_RejectsUnknownMode(t *testing.T) {
	raw, err := NewStateToken(testStateSecret, StateClaims{Mode: "evil"})
	require.NoError(t, err)

	_, err = VerifyStateToken(testStateSecret, raw)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestStateToken_TamperRejected(t *testing.T) {
	raw, err := NewStateToken(testStateSecret, StateClaims{Mode: StateModeLogin})
	require.NoError(t, err)

	_, err = VerifyStateToken("different-state-secret", raw)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestHashToken_Deterministic(t *testing.T) {
	a := HashToken("some token")
	b := HashToken("some token")
	c := HashToken("another token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRandomToken_Unique(t *testing.T) {
	a, err := RandomToken()
	require.NoError(t, err)
	b, err := RandomToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
