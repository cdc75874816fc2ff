package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnonymizedVoterID replaces the member id on stored rows and audit entries
// of anonymous votes.
const AnonymizedVoterID = "anonymous"

type Vote struct {
	ID                   uuid.UUID `json:"id"`
	SessionID            string    `json:"session_id"`
	OptionID             string    `json:"option_id"`
	VoterID              string    `json:"voter_id"`
	VoterHash            string    `json:"voter_hash"`
	Signature            string    `json:"-"`
	IsAnonymous          bool      `json:"is_anonymous"`
	CastAt               time.Time `json:"cast_at"`
	ReceiptID            string    `json:"receipt_id"`
	VerificationCodeHash string    `json:"-"`
	AuditHash            string    `json:"audit_hash"`
}

// CastRequest is the validated input of a single cast attempt.
type CastRequest struct {
	SessionID string
	OptionID  string
	VoterID   string
	Anonymous bool
}

// NewCastRequest trims and checks the raw fields.
func NewCastRequest(sessionID, optionID, voterID string, anonymous bool) (CastRequest, error) {
	req := CastRequest{
		SessionID: strings.TrimSpace(sessionID),
		OptionID:  strings.TrimSpace(optionID),
		VoterID:   strings.TrimSpace(voterID),
		Anonymous: anonymous,
	}
	if err := req.Validate(); err != nil {
		return CastRequest{}, err
	}
	return req, nil
}

func (r CastRequest) Validate() error {
	switch {
	case r.SessionID == "":
		return fmt.Errorf("%w: session id is required", ErrInvalidPayload)
	case r.OptionID == "":
		return fmt.Errorf("%w: option id is required", ErrInvalidPayload)
	case r.VoterID == "":
		return fmt.Errorf("%w: voter id is required", ErrInvalidPayload)
	case r.VoterID == AnonymizedVoterID:
		return fmt.Errorf("%w: voter id is reserved", ErrInvalidPayload)
	}
	return nil
}

// StoredVoterID is the identifier persisted on the vote row.
func (r CastRequest) StoredVoterID() string {
	if r.Anonymous {
		return AnonymizedVoterID
	}
	return r.VoterID
}
