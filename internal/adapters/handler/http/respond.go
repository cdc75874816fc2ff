package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Error: reason})
}

// statusFor maps a cast rejection to an HTTP status.
func statusFor(rejection *domain.Rejection) int {
	switch rejection.Kind {
	case domain.KindValidation:
		return validationStatus(rejection.Err)
	case domain.KindPersistence, domain.KindAuditWrite:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIneligibleVoter):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrSessionEnded):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeServiceError handles the plain errors returned by the read-side
// services.
func writeServiceError(w http.ResponseWriter, err error) {
	if domain.KindOf(err) == domain.KindValidation {
		writeError(w, validationStatus(err), domain.ReasonFor(err))
		return
	}
	log.Printf("request failed: %v", err)
	writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
}
