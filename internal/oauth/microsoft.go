package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// The "common" tenant accepts both organizational and personal accounts;
// the real tenant id arrives in the ID token's tid claim.
const (
	microsoftAuthEndpoint  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	microsoftTokenEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
)

// Microsoft implements Provider for Microsoft identity platform sign-in.
// Accounts are keyed by the (tid, oid) pair; oid alone is not unique
// across tenants.
type Microsoft struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	http *http.Client
}

func NewMicrosoft(clientID, clientSecret, redirectURL string) *Microsoft {
	return &Microsoft{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Microsoft) Name() string { return "microsoft" }

// Configured reports whether client credentials are present.
func (m *Microsoft) Configured() bool { return m.ClientID != "" && m.ClientSecret != "" }

func (m *Microsoft) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {m.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {m.RedirectURL},
		"scope":         {"openid profile email"},
		"state":         {state},
		"response_mode": {"query"},
	}
	return microsoftAuthEndpoint + "?" + params.Encode()
}

func (m *Microsoft) Exchange(ctx context.Context, code string) (Identity, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {m.ClientID},
		"client_secret": {m.ClientSecret},
		"redirect_uri":  {m.RedirectURL},
		"grant_type":    {"authorization_code"},
		"scope":         {"openid profile email"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, microsoftTokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Identity{}, fmt.Errorf("microsoft token exchange failed: %s: %s", resp.Status, body)
	}

	var tok struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Identity{}, err
	}
	if tok.IDToken == "" {
		return Identity{}, fmt.Errorf("microsoft token response missing id_token")
	}

	var claims struct {
		Oid               string `json:"oid"`
		Tid               string `json:"tid"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := decodeIDTokenClaims(tok.IDToken, &claims); err != nil {
		return Identity{}, err
	}
	if claims.Oid == "" || claims.Tid == "" {
		return Identity{}, fmt.Errorf("microsoft id_token missing oid/tid claims")
	}
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	return Identity{ProviderID: claims.Oid, TenantID: claims.Tid, Email: email, Name: claims.Name}, nil
}
