package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
}

func NewVoteHandler(service ports.VoteService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type castVoteRequest struct {
	OptionID  string `json:"option_id"`
	Anonymous bool   `json:"anonymous"`
}

type voteStatusResponse struct {
	HasVoted bool `json:"has_voted"`
}

type verifyReceiptRequest struct {
	ReceiptID        string `json:"receipt_id"`
	VerificationCode string `json:"verification_code"`
}

func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member context")
		return
	}

	var req castVoteRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ReasonFor(domain.ErrInvalidPayload))
		return
	}

	result := h.service.CastVote(r.Context(), ports.CastVoteInput{
		SessionID: chi.URLParam(r, "id"),
		OptionID:  req.OptionID,
		VoterID:   voterID,
		Anonymous: req.Anonymous,
	})
	if !result.Committed() {
		writeError(w, statusFor(result.Rejection), result.Rejection.Reason)
		return
	}

	writeJSON(w, http.StatusCreated, result.Receipt)
}

func (h *VoteHandler) VoteStatus(w http.ResponseWriter, r *http.Request) {
	voterID, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member context")
		return
	}

	voted, err := h.service.HasVoted(r.Context(), chi.URLParam(r, "id"), voterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, voteStatusResponse{HasVoted: voted})
}

// VerifyReceipt needs no caller identity: the receipt id and code are the
// voter's proof.
func (h *VoteHandler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req verifyReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	verification, err := h.service.VerifyReceipt(r.Context(), req.ReceiptID, req.VerificationCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verification)
}
