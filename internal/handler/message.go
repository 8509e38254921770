package handler

import (
	"net/http"

	"github.com/chatpool/chatpool-go/internal/middleware"
	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/service"
)

// MessageHandler handles HTTP requests for the chat feed.
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// HandleList handles GET /api/messages requests.
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.List(r.Context())
	if err != nil {
		internalError(w, r, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

// HandlePost handles POST /api/messages requests.
func (h *MessageHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(middleware.LoginRequiredMessage))
		return
	}

	var req model.PostMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.Post(r.Context(), user, req.Text)
	if err != nil {
		if model.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		internalError(w, r, "post message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
