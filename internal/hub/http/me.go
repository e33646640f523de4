package http

import (
	"net/http"
	"net/url"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/service"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/httpx"
)

type MeHandler struct {
	SessionService *service.SessionService
}

type meUser struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type meResponse struct {
	Authenticated bool    `json:"authenticated"`
	User          *meUser `json:"user,omitempty"`
}

// ServeHTTP reports whether the request carries a valid session.
//
//	@Summary		Introspect the current session
//	@Description	Reads the asi_session cookie and reports the session state.
//	@Description	Always returns 200; a missing, malformed or expired token is
//	@Description	simply an unauthenticated response, never an error.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	meResponse
//	@Router			/auth/me [get]
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, meResponse{Authenticated: false})
		return
	}

	// Some clients store the cookie URL-encoded; unescape before
	// verifying. A value that fails to unescape is used as-is.
	token := cookie.Value
	if unescaped, err := url.QueryUnescape(token); err == nil {
		token = unescaped
	}

	claims, err := h.SessionService.Introspect(token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, meResponse{Authenticated: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		User: &meUser{
			Sub:   claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
			Name:  claims.Name,
		},
	})
}
