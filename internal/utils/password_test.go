package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the hashing tests fast.
var testParams = Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashPassword_RoundTrip(t *testing.T) {
	phc, err := HashPassword(testParams, "correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"))

	assert.True(t, VerifyPassword(phc, "correct horse battery staple"))
	assert.False(t, VerifyPassword(phc, "wrong password"))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, err := HashPassword(testParams, "same input")
	require.NoError(t, err)
	b, err := HashPassword(testParams, "same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, VerifyPassword(a, "same input"))
	assert.True(t, VerifyPassword(b, "same input"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword(testParams, "")
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	for _, phc := range []string{
		"",
		"not a digest",
		"$argon2id$v=19$m=8192,t=1,p=1$onlyonesegment",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=8192,t=1,p=1$!!notb64!!$ZGs",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$!!notb64!!",
	} {
		assert.False(t, VerifyPassword(phc, "whatever"), "digest %q", phc)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		email    string
		wantErrs int
	}{
		{"ok", "S3cure enough!", "user@example.com", 0},
		{"too short", "short", "", 1},
		{"too long", strings.Repeat("x", 129), "", 1},
		{"email allowed elsewhere", "unrelated passphrase", "user@example.com", 0},
		{"contains email", "xxuser@example.comxx", "user@example.com", 1},
		{"contains email mixed case", "xxUSER@Example.COMxx", "user@example.com", 1},
		{"common", "password", "", 1},
		{"common upper", "PASSWORD", "", 1},
		{"short and common", "qwerty", "", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ValidatePasswordStrength(tc.password, tc.email)
			assert.Len(t, v.Errors, tc.wantErrs)
			assert.Equal(t, tc.wantErrs == 0, v.Valid)
		})
	}
}

func TestValidatePasswordStrength_EmailContainment(t *testing.T) {
	v := ValidatePasswordStrength("xxuser@example.comxx", "user@example.com")
	require.False(t, v.Valid)
	assert.Contains(t, v.Errors, "Password cannot contain your email address")
}
