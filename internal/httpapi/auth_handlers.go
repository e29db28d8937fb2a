package httpapi

import (
	"net/http"
	"strings"

	"recruitcore.io/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	auth.TokenPair
	User        *auth.User `json:"user"`
	Actors      []string   `json:"actors"`
	Permissions []string   `json:"permissions"`
}

func (a *API) routeAuth() {
	l := newLimiter(a.ratePerSec, a.rateBurst)
	a.mux.Handle("POST /v1/auth/register", limitWith(l, http.HandlerFunc(a.handleRegister)))
	a.mux.Handle("POST /v1/auth/login", limitWith(l, http.HandlerFunc(a.handleLogin)))
	a.mux.Handle("POST /v1/auth/refresh", limitWith(l, http.HandlerFunc(a.handleRefresh)))
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("GET /v1/auth/me", a.handleMe)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	var req auth.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.register", map[string]any{"user_id": user.ID, "email": user.Email})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, actx, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.record(r.Context(), "auth.login_failed", map[string]any{"email": strings.ToLower(strings.TrimSpace(req.Email))})
		writeServiceError(w, r, err)
		return
	}
	a.record(auth.ContextWithAuth(r.Context(), actx), "auth.login", map[string]any{"actors": actx.ActorNames()})
	writeJSON(w, http.StatusOK, loginResponse{
		TokenPair:   pair,
		User:        actx.User,
		Actors:      actx.ActorNames(),
		Permissions: actx.PermissionNames(),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		unavailable(w, r, "auth")
		return
	}
	if _, ok := currentUser(w, r); !ok {
		return
	}
	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	access, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), access, strings.TrimSpace(req.RefreshToken)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.record(r.Context(), "auth.logout", map[string]any{"refresh_revoked": req.RefreshToken != ""})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actx, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, actx.Summary())
}
