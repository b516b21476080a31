package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultArgon2 holds the production hashing parameters.
var DefaultArgon2 = Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// HashPassword derives an argon2id digest with a fresh random salt and
// returns it as a PHC string:
// $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>.
// Two calls on the same input yield different digests.
func HashPassword(p Argon2Params, plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// VerifyPassword checks plain against a PHC digest in constant time. A
// malformed digest is treated as a mismatch, never an error.
func VerifyPassword(phc, plain string) bool {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}
	var m, t, p int
	if n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); n != 3 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	dkStored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(dkStored) == 0 {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, uint32(t), uint32(m), uint8(p), uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}

// commonPasswords is a small denylist of passwords rejected outright.
var commonPasswords = map[string]struct{}{
	"password": {},
	"12345678": {},
	"qwerty":   {},
	"abc123":   {},
}

// PasswordValidation is the result of a strength check. All violations are
// collected so the client can show them together.
type PasswordValidation struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors"`
}

// ValidatePasswordStrength enforces the password policy: length within
// [8,128], must not contain the account email (case-insensitive), and must
// not be a known common password. It never fails fast; every violated rule
// contributes an entry to Errors.
func ValidatePasswordStrength(password, email string) PasswordValidation {
	var errs []string
	if len(password) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if len(password) > 128 {
		errs = append(errs, "Password must be at most 128 characters long")
	}
	if email != "" && strings.Contains(strings.ToLower(password), strings.ToLower(email)) {
		errs = append(errs, "Password cannot contain your email address")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		errs = append(errs, "Password is too common")
	}
	return PasswordValidation{Valid: len(errs) == 0, Errors: errs}
}
