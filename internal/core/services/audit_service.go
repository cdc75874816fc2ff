package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

const defaultVerifyConcurrency = 4

type auditService struct {
	sessionRepo ports.SessionRepository
	voteRepo    ports.VoteRepository
	auditRepo   ports.AuditLogRepository
	keys        *integrity.KeyDeriver
	concurrency int
}

func NewAuditService(sessionRepo ports.SessionRepository, voteRepo ports.VoteRepository, auditRepo ports.AuditLogRepository, keys *integrity.KeyDeriver, concurrency int) ports.AuditService {
	if concurrency <= 0 {
		concurrency = defaultVerifyConcurrency
	}
	return &auditService{
		sessionRepo: sessionRepo,
		voteRepo:    voteRepo,
		auditRepo:   auditRepo,
		keys:        keys,
		concurrency: concurrency,
	}
}

// VerifySession recomputes the audit chain and every stored vote of the
// session. A broken session is reported, not returned as an error; errors
// mean the check itself could not run.
func (s *auditService) VerifySession(ctx context.Context, sessionID string) (domain.IntegrityReport, error) {
	report := domain.IntegrityReport{SessionID: sessionID}

	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return report, err
	}

	entries, err := s.auditRepo.ListEntries(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("failed to list audit entries for session %s: %w", sessionID, err)
	}
	report.EntriesChecked = len(entries)

	if err := integrity.VerifyAuditChain(sessionID, entries); err != nil {
		var chainErr *integrity.ChainError
		if errors.As(err, &chainErr) {
			report.BrokenAtSeq = chainErr.Seq
			report.Problem = chainErr.Reason
			return report, nil
		}
		return report, err
	}

	votes, err := s.voteRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return report, fmt.Errorf("failed to list votes for session %s: %w", sessionID, err)
	}

	key, err := s.keys.SessionKey(sessionID)
	if err != nil {
		return report, err
	}

	byReceipt := make(map[string]domain.AuditLogEntry, len(entries))
	for _, entry := range entries {
		byReceipt[entry.ReceiptID] = entry
	}

	for _, vote := range votes {
		report.VotesChecked++
		entry, ok := byReceipt[vote.ReceiptID]
		if !ok {
			report.Problem = fmt.Sprintf("vote with receipt %s has no audit entry", vote.ReceiptID)
			return report, nil
		}
		if err := integrity.VerifyVote(*vote, key); err != nil {
			report.BrokenAtSeq = entry.Seq
			report.Problem = err.Error()
			return report, nil
		}
		if integrity.AuditHash(sessionID, vote.ReceiptID, vote.VoterHash) != vote.AuditHash || entry.AuditHash != vote.AuditHash {
			report.BrokenAtSeq = entry.Seq
			report.Problem = fmt.Sprintf("audit hash mismatch for receipt %s", vote.ReceiptID)
			return report, nil
		}
		if entry.ActorID != vote.VoterID {
			report.BrokenAtSeq = entry.Seq
			report.Problem = fmt.Sprintf("audit actor mismatch for receipt %s", vote.ReceiptID)
			return report, nil
		}
	}

	if len(votes) != len(entries) {
		report.Problem = fmt.Sprintf("%d audit entries but %d votes", len(entries), len(votes))
		return report, nil
	}

	report.Valid = true
	return report, nil
}

// VerifyAll verifies the given sessions, or every session when none are given.
func (s *auditService) VerifyAll(ctx context.Context, sessionIDs ...string) ([]domain.IntegrityReport, error) {
	ids := sessionIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.sessionRepo.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch voting sessions: %w", err)
		}
	}

	reports := make([]domain.IntegrityReport, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			report, err := s.VerifySession(ctx, id)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
