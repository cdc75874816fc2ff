package domain

import "time"

// Receipt is the output of receipt generation. VerificationCode is plaintext
// and leaves the service exactly once, in the cast response.
type Receipt struct {
	ReceiptID            string
	VerificationCode     string
	VerificationCodeHash string
	AuditHash            string
}

// CastReceipt is what the voter gets back from a committed cast.
type CastReceipt struct {
	ReceiptID        string    `json:"receipt_id"`
	VerificationCode string    `json:"verification_code"`
	CastAt           time.Time `json:"cast_at"`
}

type ReceiptVerification struct {
	Valid     bool       `json:"valid"`
	SessionID string     `json:"session_id,omitempty"`
	CastAt    *time.Time `json:"cast_at,omitempty"`
}
