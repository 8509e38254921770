package handler

import (
	"errors"
	"net/http"

	"github.com/chatpool/chatpool-go/internal/middleware"
	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleRegister handles POST /api/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case model.IsValidation(err), errors.Is(err, service.ErrUsernameTaken):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		default:
			internalError(w, r, "register", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		internalError(w, r, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleProfile handles GET /api/auth/user requests.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(middleware.LoginRequiredMessage))
		return
	}

	writeJSON(w, http.StatusOK, h.service.Profile(user))
}

// HandleUpdateEmail handles POST /api/auth/update-email requests.
func (h *AuthHandler) HandleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(middleware.LoginRequiredMessage))
		return
	}

	var req model.UpdateEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.UpdateEmail(r.Context(), user, req.Email)
	if err != nil {
		if model.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		internalError(w, r, "update email", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
