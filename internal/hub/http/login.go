package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/service"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/httpx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"
)

// codeAliases are the accepted JSON keys for the one-time code, in
// resolution order. Older dashboard builds send personalCode or the
// snake_case form; all of them mean the same field.
var codeAliases = []string{"code", "personalCode", "verificationCode", "personal_code"}

type LoginHandler struct {
	SessionService *service.SessionService
	CookieTTL      time.Duration
	CookieSecure   bool
}

type loginResponse struct {
	AccessToken string              `json:"access_token"`
	User        service.SessionUser `json:"user"`
}

// ServeHTTP redeems a one-time code for a session.
//
//	@Summary		Log in with an emailed code
//	@Description	Exchanges a one-time code for a seven-day session token. The
//	@Description	token is returned in the body and also set as the asi_session
//	@Description	cookie. Codes are single use.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,code=string}	true	"Email and code (code also accepted as personalCode, verificationCode or personal_code)"
//	@Success		200		{object}	loginResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"missing_params"
//	@Failure		401		{object}	httpx.ErrorResponse	"invalid_code"
//	@Failure		403		{object}	httpx.ErrorResponse	"no_user"
//	@Failure		500		{object}	httpx.ErrorResponse	"server_error"
//	@Router			/auth/login [post]
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "missing_params", "request body must be JSON with email and code fields")
		return
	}

	email, _ := body["email"].(string)
	code := resolveCode(body)
	if strings.TrimSpace(email) == "" || code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_params", "email and code are required")
		return
	}

	token, user, err := h.SessionService.Redeem(r.Context(), email, code)
	switch {
	case err == nil:
		// fall through to the success path below
	case errors.Is(err, service.ErrMissingEmail):
		httpx.WriteError(w, http.StatusBadRequest, "missing_params", "email and code are required")
		return
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "code is invalid, expired or already used")
		return
	case errors.Is(err, service.ErrNoUser):
		httpx.WriteError(w, http.StatusForbidden, "no_user", "no active account for this email")
		return
	default:
		log.Error("login failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not complete login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		User:        user,
	})
}

// resolveCode returns the first non-empty code alias present in the
// body. Only string values count.
func resolveCode(body map[string]any) string {
	for _, key := range codeAliases {
		if v, ok := body[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
