package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wardenhq/warden/pkg/apperr"
	"github.com/wardenhq/warden/pkg/auth"
	"github.com/wardenhq/warden/pkg/httputil"
	"github.com/wardenhq/warden/pkg/middleware"
	"github.com/wardenhq/warden/pkg/sso"
	"github.com/wardenhq/warden/pkg/users"
)

// authHandlers serves registration, local login, the current-user endpoint
// and the SSO flows.
type authHandlers struct {
	deps Deps
}

func newAuthHandlers(deps Deps) *authHandlers {
	return &authHandlers{deps: deps}
}

func (h *authHandlers) registerPublic(router *mux.Router) {
	router.HandleFunc("/auth/register", h.register).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")

	if h.deps.SSO != nil {
		router.HandleFunc("/auth/sso/saml/callback", h.samlCallback).Methods("POST")
		router.HandleFunc("/auth/sso/{provider}", h.ssoInitiate).Methods("GET")
		router.HandleFunc("/auth/sso/{provider}/callback", h.ssoCallback).Methods("GET")
	}
}

func (h *authHandlers) registerProtected(router *mux.Router) {
	router.HandleFunc("/auth/me", h.currentUser).Methods("GET")
	if h.deps.SSO != nil {
		router.HandleFunc("/auth/bind/{provider}", h.ssoBind).Methods("POST")
	}
}

// register handles POST /auth/register.
func (h *authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req users.NewUser
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.deps.Users.Create(r.Context(), []users.NewUser{req}); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.deps.Users.GetByUserName(r.Context(), req.UserName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, created)
}

// loginResponse carries the session token plus what the console needs to
// render the signed-in user.
type loginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
	Roles []string    `json:"roles"`
}

// login handles POST /auth/login.
func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserName == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "userName and password are required")
		return
	}

	u, err := h.deps.Users.GetByUserName(r.Context(), req.UserName)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Same response as a wrong password, so login probing cannot
			// distinguish unknown accounts.
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		httputil.WriteError(w, err)
		return
	}
	if !auth.VerifyPassword(u.Password, req.Password) {
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	h.writeSession(w, r, u)
}

// writeSession issues a token and assembles the login payload.
func (h *authHandlers) writeSession(w http.ResponseWriter, r *http.Request, u *users.User) {
	token, err := h.deps.Tokens.Issue(u.ID, u.UserName)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	roleList, err := h.deps.Roles.RolesForUser(r.Context(), u.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	names := make([]string, len(roleList))
	for i, role := range roleList {
		names[i] = role.Name
	}

	httputil.WriteSuccess(w, loginResponse{Token: token, User: u, Roles: names})
}

// currentUser handles GET /auth/me.
func (h *authHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	u, err := h.deps.Users.Get(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roleList, err := h.deps.Roles.RolesForUser(r.Context(), u.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	groupList, err := h.deps.Groups.GroupsForUser(r.Context(), u.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	catalogs, err := h.deps.Catalog.ListForUser(r.Context(), u.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user":     u,
		"roles":    roleList,
		"groups":   groupList,
		"catalogs": catalogs,
	})
}

// ssoInitiate handles GET /auth/sso/{provider}. The optional "redirect" query
// parameter rides through the round-trip inside the signed state.
func (h *authHandlers) ssoInitiate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]

	state, err := h.deps.SSO.States.Encode(sso.State{Redirect: r.URL.Query().Get("redirect")})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	authURL, err := h.authURLFor(name, state)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ssoBind handles POST /auth/bind/{provider}: starts a provider round-trip
// whose callback attaches the external identity to the signed-in account.
func (h *authHandlers) ssoBind(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if identity == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	name := mux.Vars(r)["provider"]

	state, err := h.deps.SSO.States.Encode(sso.State{BindUserID: identity.UserID})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	authURL, err := h.authURLFor(name, state)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"authUrl": authURL})
}

func (h *authHandlers) authURLFor(name, state string) (string, error) {
	if name == sso.ProviderSAML && h.deps.SSO.SAML != nil {
		return h.deps.SSO.SAML.AuthURL(state)
	}
	p, ok := h.deps.SSO.Registry.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: unknown sso provider %q", apperr.ErrNotFound, name)
	}
	return p.AuthURL(state), nil
}

// ssoCallback handles GET /auth/sso/{provider}/callback for the
// code-exchange providers.
func (h *authHandlers) ssoCallback(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]
	p, ok := h.deps.SSO.Registry.Get(name)
	if !ok {
		httputil.WriteNotFoundError(w, "unknown sso provider")
		return
	}

	state, err := h.deps.SSO.States.Decode(r.URL.Query().Get("state"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ext, err := p.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logrus.WithError(err).WithField("provider", name).Warn("sso exchange failed")
		httputil.WriteUnauthorized(w, "sso login failed")
		return
	}

	h.completeSSO(w, r, name, ext, state)
}

// samlCallback handles POST /auth/sso/saml/callback (POST binding).
func (h *authHandlers) samlCallback(w http.ResponseWriter, r *http.Request) {
	if h.deps.SSO.SAML == nil {
		httputil.WriteNotFoundError(w, "saml is not configured")
		return
	}
	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "invalid form body")
		return
	}

	state, err := h.deps.SSO.States.Decode(r.PostForm.Get("RelayState"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ext, err := h.deps.SSO.SAML.ParseResponse(r.PostForm.Get("SAMLResponse"))
	if err != nil {
		logrus.WithError(err).Warn("saml assertion rejected")
		httputil.WriteUnauthorized(w, "sso login failed")
		return
	}

	h.completeSSO(w, r, sso.ProviderSAML, ext, state)
}

// completeSSO finishes both flows: bind attaches the identity to an existing
// account, login provisions or resolves one and issues a session.
func (h *authHandlers) completeSSO(w http.ResponseWriter, r *http.Request, name string, ext *sso.ExternalUser, state sso.State) {
	if state.BindUserID != 0 {
		err := h.deps.Users.BindOpenID(r.Context(), state.BindUserID, ext.OpenID(name), registerTypeFor(name))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteSuccess(w, map[string]string{"status": "bound"})
		return
	}

	u, created, err := h.deps.SSO.Provisioner.Login(r.Context(), name, ext)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if created {
		logrus.WithFields(logrus.Fields{"user_id": u.ID, "provider": name}).Info("first sso login")
	}

	if state.Redirect != "" {
		token, err := h.deps.Tokens.Issue(u.ID, u.UserName)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		http.Redirect(w, r, state.Redirect+"?token="+url.QueryEscape(token), http.StatusFound)
		return
	}

	h.writeSession(w, r, u)
}

func registerTypeFor(providerName string) auth.RegisterType {
	if providerName == sso.ProviderChat {
		return auth.RegisterTypeChat
	}
	return auth.RegisterTypeEnterprise
}
