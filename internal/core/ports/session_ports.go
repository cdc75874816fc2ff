package ports

import (
	"context"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

// SessionRepository reads the externally owned session, option and
// eligibility tables.
type SessionRepository interface {
	// GetByID returns the session with its options ordered, or
	// domain.ErrSessionNotFound.
	GetByID(ctx context.Context, id string) (*domain.VotingSession, error)
	// GetEligibility returns nil when no record exists for the member.
	GetEligibility(ctx context.Context, sessionID, memberID string) (*domain.VoterEligibility, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type SessionService interface {
	GetSession(ctx context.Context, id string) (*domain.VotingSession, error)
}
