package domain

import "time"

// AuditLogEntry is one link of a session's append-only audit chain.
type AuditLogEntry struct {
	SessionID  string    `json:"session_id"`
	Seq        uint64    `json:"seq"`
	ActorID    string    `json:"actor_id"`
	ReceiptID  string    `json:"receipt_id"`
	AuditHash  string    `json:"audit_hash"`
	PrevHash   string    `json:"prev_hash"`
	ChainHash  string    `json:"chain_hash"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AuditDraft carries what the store needs to link a new entry once it holds
// the session's chain tail.
type AuditDraft struct {
	SessionID  string
	ActorID    string
	Receipt    Receipt
	RecordedAt time.Time
}

// IntegrityReport summarises a full verification pass over one session.
type IntegrityReport struct {
	SessionID      string `json:"session_id"`
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	VotesChecked   int    `json:"votes_checked"`
	BrokenAtSeq    uint64 `json:"broken_at_seq,omitempty"`
	Problem        string `json:"problem,omitempty"`
}
