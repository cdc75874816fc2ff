package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

type AuditHandler struct {
	service ports.AuditService
}

func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{
		service: service,
	}
}

func (h *AuditHandler) SessionIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifySession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
