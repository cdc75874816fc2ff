// Package memory is a process-local store with the same transactional
// guarantees as the Postgres adapter. It backs the dev server and the
// service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
)

type ballotKey struct {
	sessionID string
	voterID   string
}

type Store struct {
	mu          sync.RWMutex
	sessions    map[string]domain.VotingSession
	eligibility map[ballotKey]bool
	claims      map[ballotKey]struct{}
	votes       map[string]domain.Vote // by receipt id
	audit       map[string][]domain.AuditLogEntry

	// failAudit makes the next audit append fail; tests use it to check rollback.
	failAudit error
}

func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]domain.VotingSession),
		eligibility: make(map[ballotKey]bool),
		claims:      make(map[ballotKey]struct{}),
		votes:       make(map[string]domain.Vote),
		audit:       make(map[string][]domain.AuditLogEntry),
	}
}

// PutSession stores a session and its options, replacing any previous copy.
func (s *Store) PutSession(session domain.VotingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Options = append([]domain.VotingOption(nil), session.Options...)
	for i := range session.Options {
		session.Options[i].SessionID = session.ID
	}
	s.sessions[session.ID] = session
}

func (s *Store) PutEligibility(e domain.VoterEligibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligibility[ballotKey{e.SessionID, e.MemberID}] = e.IsEligible
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.VotingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session.Options = append([]domain.VotingOption(nil), session.Options...)
	sort.SliceStable(session.Options, func(i, j int) bool {
		return session.Options[i].Order < session.Options[j].Order
	})
	return &session, nil
}

func (s *Store) GetEligibility(ctx context.Context, sessionID, memberID string) (*domain.VoterEligibility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	eligible, ok := s.eligibility[ballotKey{sessionID, memberID}]
	if !ok {
		return nil, nil
	}
	return &domain.VoterEligibility{SessionID: sessionID, MemberID: memberID, IsEligible: eligible}, nil
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) HasVoted(ctx context.Context, sessionID, voterID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.claims[ballotKey{sessionID, voterID}]
	return ok, nil
}

// Commit applies the claim, vote and audit entry under one lock so either all
// three land or none does.
func (s *Store) Commit(ctx context.Context, voterID string, vote *domain.Vote, draft domain.AuditDraft) (*domain.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ballotKey{vote.SessionID, voterID}
	if _, ok := s.claims[key]; ok {
		return nil, domain.ErrAlreadyVoted
	}
	if _, ok := s.votes[vote.ReceiptID]; ok {
		return nil, fmt.Errorf("%w: receipt id collision", domain.ErrPersistence)
	}

	if s.failAudit != nil {
		err := s.failAudit
		s.failAudit = nil
		return nil, fmt.Errorf("%w: %v", domain.ErrAuditWrite, err)
	}

	chain := s.audit[draft.SessionID]
	var prev *domain.AuditLogEntry
	if len(chain) > 0 {
		prev = &chain[len(chain)-1]
	}
	entry, err := integrity.AppendAuditEntry(draft, prev)
	if err != nil {
		return nil, err
	}

	s.claims[key] = struct{}{}
	s.votes[vote.ReceiptID] = *vote
	s.audit[draft.SessionID] = append(chain, entry)
	return &entry, nil
}

func (s *Store) GetByReceiptID(ctx context.Context, receiptID string) (*domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	vote, ok := s.votes[receiptID]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	return &vote, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var votes []*domain.Vote
	for _, v := range s.votes {
		if v.SessionID == sessionID {
			vote := v
			votes = append(votes, &vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].CastAt.Equal(votes[j].CastAt) {
			return votes[i].ReceiptID < votes[j].ReceiptID
		}
		return votes[i].CastAt.Before(votes[j].CastAt)
	})
	return votes, nil
}

func (s *Store) ListEntries(ctx context.Context, sessionID string) ([]domain.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.AuditLogEntry(nil), s.audit[sessionID]...), nil
}
