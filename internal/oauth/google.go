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

const (
	googleAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint = "https://oauth2.googleapis.com/token"
)

// Google implements Provider for Google OIDC sign-in.
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	http *http.Client
}

// NewGoogle constructs the Google provider. redirectURL must match the
// URI registered in the Google console.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Google) Name() string { return "google" }

// Configured reports whether client credentials are present.
func (g *Google) Configured() bool { return g.ClientID != "" && g.ClientSecret != "" }

func (g *Google) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {g.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {g.RedirectURL},
		"scope":         {"openid profile email"},
		"state":         {state},
		"access_type":   {"offline"},
	}
	return googleAuthEndpoint + "?" + params.Encode()
}

func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {g.ClientID},
		"client_secret": {g.ClientSecret},
		"redirect_uri":  {g.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Identity{}, fmt.Errorf("google token exchange failed: %s: %s", resp.Status, body)
	}

	var tok struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Identity{}, err
	}
	if tok.IDToken == "" {
		return Identity{}, fmt.Errorf("google token response missing id_token")
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeIDTokenClaims(tok.IDToken, &claims); err != nil {
		return Identity{}, err
	}
	if claims.Sub == "" {
		return Identity{}, fmt.Errorf("google id_token missing sub claim")
	}
	return Identity{ProviderID: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}
