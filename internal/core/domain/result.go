package domain

import (
	"errors"
	"fmt"
)

// Rejection explains why a cast attempt did not commit. Reason is safe to show
// to the voter; Err is the internal cause and only goes to logs.
type Rejection struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("cast rejected (%s): %s", r.Kind, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// CastResult is either a committed receipt or a rejection, never both.
type CastResult struct {
	Receipt   *CastReceipt
	Rejection *Rejection
}

func (r CastResult) Committed() bool {
	return r.Receipt != nil && r.Rejection == nil
}

func Committed(receipt CastReceipt) CastResult {
	return CastResult{Receipt: &receipt}
}

// Rejected builds a rejection from err, choosing the voter-facing reason.
func Rejected(err error) CastResult {
	kind := KindOf(err)
	return CastResult{Rejection: &Rejection{Kind: kind, Reason: ReasonFor(err), Err: err}}
}

// ReasonFor returns a non-technical explanation for err.
func ReasonFor(err error) string {
	switch KindOf(err) {
	case KindValidation:
		for _, target := range validationErrors {
			if errors.Is(err, target) {
				return validationReasons[target]
			}
		}
		return "your vote could not be accepted"
	case KindPersistence, KindAuditWrite:
		return "your vote was not recorded, please try again later"
	default:
		return "voting is temporarily unavailable, please contact the election administrator"
	}
}

var validationReasons = map[error]string{
	ErrSessionNotFound:     "this voting session does not exist",
	ErrSessionNotActive:    "this voting session is not open",
	ErrSessionEnded:        "this voting session has closed",
	ErrInvalidOption:       "the selected option is not part of this voting session",
	ErrAlreadyVoted:        "you have already voted in this session",
	ErrIneligibleVoter:     "you are not eligible to vote in this session",
	ErrAnonymityNotAllowed: "this session does not allow anonymous votes",
	ErrInvalidPayload:      "the vote request is incomplete",
}
