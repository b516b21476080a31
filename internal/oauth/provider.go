// Package oauth implements the federated identity providers (Google,
// Microsoft). Each provider builds its authorization URL and exchanges a
// callback code for the identity claims of the signed-in account.
// ID-token signature verification is the provider's responsibility at the
// transport level: tokens are received directly from the provider's token
// endpoint over TLS, so the claims are decoded without a second
// cryptographic check here.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Identity is the provider-attested identity extracted from an ID token.
type Identity struct {
	ProviderID string // Google sub or Microsoft oid
	TenantID   string // Microsoft tid; empty for Google
	Email      string
	Name       string
}

// Provider is one federated identity provider.
type Provider interface {
	// Name returns the provider tag used in routes and audit metadata.
	Name() string
	// AuthorizationURL builds the provider consent URL carrying the
	// signed state blob.
	AuthorizationURL(state string) string
	// Exchange trades a callback code for the account's identity.
	Exchange(ctx context.Context, code string) (Identity, error)
}

// decodeIDTokenClaims extracts the claims JSON from a compact JWS without
// verifying the signature (see the package comment).
func decodeIDTokenClaims(idToken string, into any) error {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return errors.New("malformed id_token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return errors.New("malformed id_token payload")
	}
	return json.Unmarshal(payload, into)
}
