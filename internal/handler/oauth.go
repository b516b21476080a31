package handler

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-api/internal/oauth"
	"github.com/iliyamo/todo-api/internal/service"
	"github.com/iliyamo/todo-api/internal/utils"
)

// OAuthHandler drives the federated login and link flows for both
// providers. The round trip is stateless: everything the callback needs
// (mode, frontend target, linking user) rides in the signed state token.
type OAuthHandler struct {
	Auth        *service.AuthService
	Google      *oauth.Google
	Microsoft   *oauth.Microsoft
	StateSecret string
	FrontendURL string
}

func NewOAuthHandler(auth *service.AuthService, g *oauth.Google, m *oauth.Microsoft, stateSecret, frontendURL string) *OAuthHandler {
	return &OAuthHandler{Auth: auth, Google: g, Microsoft: m, StateSecret: stateSecret, FrontendURL: frontendURL}
}

type configuredProvider interface {
	oauth.Provider
	Configured() bool
}

func (h *OAuthHandler) provider(name string) (configuredProvider, bool) {
	switch name {
	case "google":
		return h.Google, h.Google != nil && h.Google.Configured()
	case "microsoft":
		return h.Microsoft, h.Microsoft != nil && h.Microsoft.Configured()
	}
	return nil, false
}

// Login starts the provider round trip for an unauthenticated user.
// Optional ?redirect= overrides where the callback sends the browser.
func (h *OAuthHandler) Login(c echo.Context) error {
	p, ok := h.provider(c.Param("provider"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown or unconfigured provider"})
	}

	state, err := utils.NewStateToken(h.StateSecret, utils.StateClaims{
		Redirect: c.QueryParam("redirect"),
		Frontend: h.FrontendURL,
		Mode:     utils.StateModeLogin,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, p.AuthorizationURL(state))
}

// Link starts the provider round trip for an authenticated user who wants
// to attach the provider identity to their account. The provider URL is
// returned rather than redirected to because the request carries a Bearer
// token, not a browser session.
func (h *OAuthHandler) Link(c echo.Context) error {
	p, ok := h.provider(c.Param("provider"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown or unconfigured provider"})
	}
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	state, err := utils.NewStateToken(h.StateSecret, utils.StateClaims{
		Redirect:      c.QueryParam("redirect"),
		Frontend:      h.FrontendURL,
		Mode:          utils.StateModeLink,
		CurrentUserID: uid.String(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": p.AuthorizationURL(state)})
}

// Callback finishes both flows. On success the browser is sent back to
// the frontend; login results carry the token pair in the fragment so
// they stay out of server logs along the way.
func (h *OAuthHandler) Callback(c echo.Context) error {
	p, ok := h.provider(c.Param("provider"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown or unconfigured provider"})
	}

	state, err := utils.VerifyStateToken(h.StateSecret, c.QueryParam("state"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state"})
	}
	if errMsg := c.QueryParam("error"); errMsg != "" {
		return h.frontendError(c, state, errMsg)
	}
	code := c.QueryParam("code")
	if code == "" {
		return h.frontendError(c, state, "missing code")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		c.Logger().Errorf("oauth exchange failed: %v", err)
		return h.frontendError(c, state, "provider exchange failed")
	}

	switch state.Mode {
	case utils.StateModeLogin:
		var res service.AuthResult
		switch p.Name() {
		case "google":
			res, err = h.Auth.LoginWithGoogle(ctx, identity.ProviderID, identity.Email, identity.Name, reqMeta(c))
		default:
			res, err = h.Auth.LoginWithMicrosoft(ctx, identity.ProviderID, identity.TenantID, identity.Email, identity.Name, reqMeta(c))
		}
		if err != nil {
			if se, ok := service.AsError(err); ok {
				return h.frontendError(c, state, se.Message)
			}
			return writeError(c, err)
		}
		if target := h.target(state); target != "" {
			v := url.Values{
				"accessToken":  {res.AccessToken},
				"refreshToken": {res.RefreshToken},
			}
			return c.Redirect(http.StatusFound, target+"#"+v.Encode())
		}
		return c.JSON(http.StatusOK, res)

	case utils.StateModeLink:
		uid, perr := uuid.Parse(state.CurrentUserID)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state"})
		}
		switch p.Name() {
		case "google":
			err = h.Auth.LinkGoogle(ctx, uid, identity.ProviderID, identity.Email, reqMeta(c))
		default:
			err = h.Auth.LinkMicrosoft(ctx, uid, identity.ProviderID, identity.TenantID, identity.Email, reqMeta(c))
		}
		if err != nil {
			if se, ok := service.AsError(err); ok {
				return h.frontendError(c, state, se.Message)
			}
			return writeError(c, err)
		}
		if target := h.target(state); target != "" {
			return c.Redirect(http.StatusFound, target+"?linked="+p.Name())
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Identity linked"})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid state"})
}

// Unlink detaches the provider identity from the caller's account.
func (h *OAuthHandler) Unlink(c echo.Context) error {
	name := c.Param("provider")
	if name != "google" && name != "microsoft" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
	}
	uid, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	var err error
	if name == "google" {
		err = h.Auth.UnlinkGoogle(ctx, uid, reqMeta(c))
	} else {
		err = h.Auth.UnlinkMicrosoft(ctx, uid, reqMeta(c))
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Identity unlinked"})
}

// target picks the post-callback browser destination.
func (h *OAuthHandler) target(state utils.StateClaims) string {
	if state.Redirect != "" {
		return state.Redirect
	}
	return state.Frontend
}

func (h *OAuthHandler) frontendError(c echo.Context, state utils.StateClaims, msg string) error {
	if target := h.target(state); target != "" {
		return c.Redirect(http.StatusFound, target+"?error="+url.QueryEscape(msg))
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
