package utils // package utils provides token signing, verification and hashing helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
)

// Token verification failure modes. Both surface to clients as a generic
// unauthorized response; the split exists for internal logging and tests.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

// AccessClaims is the decoded payload of an access token.
type AccessClaims struct {
	UserID uuid.UUID
	Email  string
	Role   model.Role
}

// RefreshClaims is the decoded payload of a refresh token. SessionID binds
// the token to exactly one refresh_token_sessions row.
type RefreshClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

// OAuth state modes carried across the redirect round-trip.
const (
	StateModeLogin = "login"
	StateModeLink  = "link"
)

// StateClaims is the decoded payload of a signed OAuth state blob. It is
// the only state carried across the provider redirect, so it is signed to
// prevent tampering with the redirect target or the linking target user.
type StateClaims struct {
	Redirect      string
	Frontend      string
	Mode          string // "login" | "link"
	CurrentUserID string // set only for link mode
}

// NewAccessToken signs an HS256 access token embedding the user id, email
// and role. TTL is expressed in minutes.
func NewAccessToken(secret string, userID uuid.UUID, email string, role model.Role, ttlMin int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"role":  string(role),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Duration(ttlMin) * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NewRefreshToken signs an HS256 refresh token embedding the user id and
// the id of the session row it belongs to. TTL is expressed in days.
func NewRefreshToken(secret string, userID, sessionID uuid.UUID, ttlDays int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"sid": sessionID.String(),
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// stateTTL bounds how long an OAuth round-trip may take.
const stateTTL = 5 * time.Minute

// NewStateToken signs the OAuth state blob with its own key.
func NewStateToken(secret string, s StateClaims) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"redirect": s.Redirect,
		"frontend": s.Frontend,
		"mode":     s.Mode,
		"iat":      now.Unix(),
		"exp":      now.Add(stateTTL).Unix(),
	}
	if s.CurrentUserID != "" {
		claims["current_user_id"] = s.CurrentUserID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyAccessToken validates signature and expiry and decodes the access
// claims. Returns ErrTokenExpired or ErrTokenMalformed.
func VerifyAccessToken(secret, raw string) (AccessClaims, error) {
	claims, err := parseHS256(secret, raw)
	if err != nil {
		return AccessClaims{}, err
	}
	sub, _ := claims["sub"].(string)
	userID, perr := uuid.Parse(sub)
	if perr != nil {
		return AccessClaims{}, ErrTokenMalformed
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return AccessClaims{UserID: userID, Email: email, Role: model.Role(role)}, nil
}

// VerifyRefreshToken validates signature and expiry and decodes the
// refresh claims.
func VerifyRefreshToken(secret, raw string) (RefreshClaims, error) {
	claims, err := parseHS256(secret, raw)
	if err != nil {
		return RefreshClaims{}, err
	}
	sub, _ := claims["sub"].(string)
	userID, perr := uuid.Parse(sub)
	if perr != nil {
		return RefreshClaims{}, ErrTokenMalformed
	}
	sid, _ := claims["sid"].(string)
	sessionID, perr := uuid.Parse(sid)
	if perr != nil {
		return RefreshClaims{}, ErrTokenMalformed
	}
	return RefreshClaims{UserID: userID, SessionID: sessionID}, nil
}

// VerifyStateToken validates and decodes the OAuth state blob.
func VerifyStateToken(secret, raw string) (StateClaims, error) {
	claims, err := parseHS256(secret, raw)
	if err != nil {
		return StateClaims{}, err
	}
	s := StateClaims{}
	s.Redirect, _ = claims["redirect"].(string)
	s.Frontend, _ = claims["frontend"].(string)
	s.Mode, _ = claims["mode"].(string)
	s.CurrentUserID, _ = claims["current_user_id"].(string)
	if s.Mode != StateModeLogin && s.Mode != StateModeLink {
		return StateClaims{}, ErrTokenMalformed
	}
	return s, nil
}

// parseHS256 parses a token, enforcing the HMAC signing method, and maps
// library failures onto the two sentinel errors.
func parseHS256(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token. Only digests are
// stored; a leaked database row cannot be replayed as a token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns a URL-safe random token used for email verification
// and password reset links (32 bytes of entropy).
func RandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
