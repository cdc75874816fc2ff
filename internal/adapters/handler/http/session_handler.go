package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

type SessionHandler struct {
	service ports.SessionService
}

func NewSessionHandler(service ports.SessionService) *SessionHandler {
	return &SessionHandler{
		service: service,
	}
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
