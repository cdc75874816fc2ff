package ports

import (
	"context"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

type VoteRepository interface {
	// HasVoted checks the ballot claims under the real voter identity.
	HasVoted(ctx context.Context, sessionID, voterID string) (bool, error)
	// Commit claims the voter's ballot, stores the vote and appends the audit
	// entry built from draft in one transaction. A second claim for the same
	// (session, voter) fails with domain.ErrAlreadyVoted.
	Commit(ctx context.Context, voterID string, vote *domain.Vote, draft domain.AuditDraft) (*domain.AuditLogEntry, error)
	// GetByReceiptID returns domain.ErrReceiptNotFound for unknown receipts.
	GetByReceiptID(ctx context.Context, receiptID string) (*domain.Vote, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Vote, error)
}

type AuditLogRepository interface {
	// ListEntries returns the session's entries in ascending sequence order.
	ListEntries(ctx context.Context, sessionID string) ([]domain.AuditLogEntry, error)
}

type CastVoteInput struct {
	SessionID string
	OptionID  string
	VoterID   string
	Anonymous bool
}

type VoteService interface {
	CastVote(ctx context.Context, input CastVoteInput) domain.CastResult
	VerifyReceipt(ctx context.Context, receiptID, verificationCode string) (domain.ReceiptVerification, error)
	HasVoted(ctx context.Context, sessionID, voterID string) (bool, error)
}

type AuditService interface {
	VerifySession(ctx context.Context, sessionID string) (domain.IntegrityReport, error)
	VerifyAll(ctx context.Context, sessionIDs ...string) ([]domain.IntegrityReport, error)
}
