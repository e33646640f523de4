package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/service"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/httpx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"
)

type RequestCodeHandler struct {
	SessionService *service.SessionService
}

type requestCodeRequest struct {
	Email string `json:"email"`
}

type requestCodeResponse struct {
	OK bool `json:"ok"`
}

// ServeHTTP issues and emails a one-time login code.
//
//	@Summary		Request a login code
//	@Description	Upserts the identity for the address and emails a six-digit
//	@Description	code valid for ten minutes. The code only travels by email;
//	@Description	the response never contains it.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		requestCodeRequest	true	"Email address"
//	@Success		200		{object}	requestCodeResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"missing_email"
//	@Failure		500		{object}	httpx.ErrorResponse	"server_error"
//	@Router			/auth/request-code [post]
func (h *RequestCodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "missing_email", "request body must be JSON with an email field")
		return
	}

	err := h.SessionService.RequestCode(r.Context(), req.Email)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, requestCodeResponse{OK: true})
	case errors.Is(err, service.ErrMissingEmail):
		httpx.WriteError(w, http.StatusBadRequest, "missing_email", "email is required")
	default:
		log.Error("request-code failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue login code")
	}
}
