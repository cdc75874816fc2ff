package domain

import "errors"

// Validation failures. These are final or user-correctable.
var (
	ErrSessionNotFound     = errors.New("voting session not found")
	ErrSessionNotActive    = errors.New("voting session is not active")
	ErrSessionEnded        = errors.New("voting session has ended")
	ErrInvalidOption       = errors.New("invalid option for this voting session")
	ErrAlreadyVoted        = errors.New("vote already cast")
	ErrIneligibleVoter     = errors.New("voter is not eligible")
	ErrAnonymityNotAllowed = errors.New("anonymous voting is not allowed in this session")
	ErrInvalidPayload      = errors.New("invalid vote payload")
	ErrReceiptNotFound     = errors.New("receipt not found")
)

// Integrity and infrastructure failures.
var (
	ErrConfiguration     = errors.New("voting integrity configuration error")
	ErrSigning           = errors.New("vote signing failed")
	ErrReceiptGeneration = errors.New("receipt generation failed")
	ErrPersistence       = errors.New("vote persistence failed")
	ErrAuditWrite        = errors.New("audit log write failed")
)

// ErrorKind groups errors into the categories callers react to.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindSigning       ErrorKind = "signing"
	KindReceipt       ErrorKind = "receipt"
	KindPersistence   ErrorKind = "persistence"
	KindAuditWrite    ErrorKind = "audit_write"
)

var validationErrors = []error{
	ErrSessionNotFound,
	ErrSessionNotActive,
	ErrSessionEnded,
	ErrInvalidOption,
	ErrAlreadyVoted,
	ErrIneligibleVoter,
	ErrAnonymityNotAllowed,
	ErrInvalidPayload,
}

// KindOf classifies err. Anything unrecognised is treated as a persistence
// failure so the voter is told to retry rather than that their vote counted.
func KindOf(err error) ErrorKind {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return KindValidation
		}
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrSigning):
		return KindSigning
	case errors.Is(err, ErrReceiptGeneration):
		return KindReceipt
	case errors.Is(err, ErrAuditWrite):
		return KindAuditWrite
	default:
		return KindPersistence
	}
}

// Internal reports whether the kind points at a server-side defect rather
// than a voter or storage condition.
func (k ErrorKind) Internal() bool {
	return k == KindConfiguration || k == KindSigning || k == KindReceipt
}
