package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

// DefaultCastTimeout bounds a single cast attempt, storage included.
const DefaultCastTimeout = 10 * time.Second

type castStage string

const (
	stageValidating      castStage = "validating"
	stageSigning         castStage = "signing"
	stageReceiptBuilding castStage = "receipt_building"
	stagePersisting      castStage = "persisting"
)

type voteService struct {
	sessionRepo ports.SessionRepository
	voteRepo    ports.VoteRepository
	keys        *integrity.KeyDeriver
	receipts    *integrity.ReceiptGenerator
	now         func() time.Time
	castTimeout time.Duration
}

type VoteServiceOption func(*voteService)

func WithClock(now func() time.Time) VoteServiceOption {
	return func(s *voteService) {
		s.now = now
	}
}

func WithCastTimeout(d time.Duration) VoteServiceOption {
	return func(s *voteService) {
		if d > 0 {
			s.castTimeout = d
		}
	}
}

func NewVoteService(sessionRepo ports.SessionRepository, voteRepo ports.VoteRepository, keys *integrity.KeyDeriver, receipts *integrity.ReceiptGenerator, opts ...VoteServiceOption) ports.VoteService {
	s := &voteService{
		sessionRepo: sessionRepo,
		voteRepo:    voteRepo,
		keys:        keys,
		receipts:    receipts,
		now:         time.Now,
		castTimeout: DefaultCastTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *voteService) CastVote(ctx context.Context, input ports.CastVoteInput) domain.CastResult {
	req, err := domain.NewCastRequest(input.SessionID, input.OptionID, input.VoterID, input.Anonymous)
	if err != nil {
		return s.reject(stageValidating, input.SessionID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.castTimeout)
	defer cancel()

	now := s.now().UTC().Truncate(time.Second)

	if err := s.validate(ctx, req, now); err != nil {
		return s.reject(stageValidating, req.SessionID, err)
	}

	key, err := s.keys.SessionKey(req.SessionID)
	if err != nil {
		return s.reject(stageSigning, req.SessionID, err)
	}
	storedVoterID := req.StoredVoterID()
	sig, err := integrity.SignVote(integrity.VotePayload{
		SessionID: req.SessionID,
		OptionID:  req.OptionID,
		VoterID:   storedVoterID,
		Timestamp: now.Unix(),
	}, key)
	if err != nil {
		return s.reject(stageSigning, req.SessionID, err)
	}

	receipt, err := s.receipts.GenerateReceipt(integrity.ReceiptPayload{
		SessionID:   req.SessionID,
		OptionID:    req.OptionID,
		MemberID:    req.VoterID,
		IsAnonymous: req.Anonymous,
	}, sig)
	if err != nil {
		return s.reject(stageReceiptBuilding, req.SessionID, err)
	}

	vote := &domain.Vote{
		ID:                   uuid.New(),
		SessionID:            req.SessionID,
		OptionID:             req.OptionID,
		VoterID:              storedVoterID,
		VoterHash:            sig.VoteHash,
		Signature:            sig.Signature,
		IsAnonymous:          req.Anonymous,
		CastAt:               now,
		ReceiptID:            receipt.ReceiptID,
		VerificationCodeHash: receipt.VerificationCodeHash,
		AuditHash:            receipt.AuditHash,
	}
	draft := domain.AuditDraft{
		SessionID:  req.SessionID,
		ActorID:    storedVoterID,
		Receipt:    receipt,
		RecordedAt: now,
	}
	entry, err := s.voteRepo.Commit(ctx, req.VoterID, vote, draft)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, domain.ErrAuditWrite) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return s.reject(stagePersisting, req.SessionID, err)
	}

	log.Printf("vote committed session=%s receipt=%s audit_seq=%d", vote.SessionID, vote.ReceiptID, entry.Seq)

	return domain.Committed(domain.CastReceipt{
		ReceiptID:        receipt.ReceiptID,
		VerificationCode: receipt.VerificationCode,
		CastAt:           now,
	})
}

func (s *voteService) validate(ctx context.Context, req domain.CastRequest, now time.Time) error {
	session, err := s.sessionRepo.GetByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("%w: load session: %v", domain.ErrPersistence, err)
	}

	if session.Status != domain.SessionActive {
		return domain.ErrSessionNotActive
	}
	if session.EndedAt(now) {
		return domain.ErrSessionEnded
	}
	if !session.HasOption(req.OptionID) {
		return domain.ErrInvalidOption
	}
	if req.Anonymous && !session.AllowAnonymous {
		return domain.ErrAnonymityNotAllowed
	}

	eligibility, err := s.sessionRepo.GetEligibility(ctx, req.SessionID, req.VoterID)
	if err != nil {
		return fmt.Errorf("%w: load eligibility: %v", domain.ErrPersistence, err)
	}
	if eligibility != nil && !eligibility.IsEligible {
		return domain.ErrIneligibleVoter
	}

	// Early exit only; the ballot claim inside Commit is what enforces it.
	hasVoted, err := s.voteRepo.HasVoted(ctx, req.SessionID, req.VoterID)
	if err != nil {
		return fmt.Errorf("%w: check existing vote: %v", domain.ErrPersistence, err)
	}
	if hasVoted {
		return domain.ErrAlreadyVoted
	}
	return nil
}

func (s *voteService) reject(stage castStage, sessionID string, err error) domain.CastResult {
	result := domain.Rejected(err)
	if result.Rejection.Kind.Internal() {
		log.Printf("CRITICAL: cast failed stage=%s session=%s kind=%s: %v", stage, sessionID, result.Rejection.Kind, err)
	} else {
		log.Printf("cast rejected stage=%s session=%s kind=%s: %v", stage, sessionID, result.Rejection.Kind, err)
	}
	return result
}

func (s *voteService) VerifyReceipt(ctx context.Context, receiptID, verificationCode string) (domain.ReceiptVerification, error) {
	receiptID = strings.TrimSpace(receiptID)
	verificationCode = strings.TrimSpace(verificationCode)
	if receiptID == "" || verificationCode == "" {
		return domain.ReceiptVerification{}, nil
	}

	vote, err := s.voteRepo.GetByReceiptID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, domain.ErrReceiptNotFound) {
			return domain.ReceiptVerification{}, nil
		}
		return domain.ReceiptVerification{}, fmt.Errorf("failed to load receipt: %w", err)
	}

	if !integrity.CheckVerificationCode(vote.VerificationCodeHash, verificationCode) {
		return domain.ReceiptVerification{}, nil
	}

	key, err := s.keys.SessionKey(vote.SessionID)
	if err != nil {
		return domain.ReceiptVerification{}, err
	}
	if err := integrity.VerifyVote(*vote, key); err != nil {
		log.Printf("CRITICAL: stored vote failed verification session=%s receipt=%s: %v", vote.SessionID, vote.ReceiptID, err)
		return domain.ReceiptVerification{}, nil
	}
	if integrity.AuditHash(vote.SessionID, vote.ReceiptID, vote.VoterHash) != vote.AuditHash {
		log.Printf("CRITICAL: stored vote audit hash mismatch session=%s receipt=%s", vote.SessionID, vote.ReceiptID)
		return domain.ReceiptVerification{}, nil
	}

	castAt := vote.CastAt
	return domain.ReceiptVerification{
		Valid:     true,
		SessionID: vote.SessionID,
		CastAt:    &castAt,
	}, nil
}

func (s *voteService) HasVoted(ctx context.Context, sessionID, voterID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	voterID = strings.TrimSpace(voterID)
	if sessionID == "" || voterID == "" {
		return false, domain.ErrInvalidPayload
	}
	return s.voteRepo.HasVoted(ctx, sessionID, voterID)
}
