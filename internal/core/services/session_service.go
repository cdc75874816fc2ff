package services

import (
	"context"
	"strings"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
)

type sessionService struct {
	repo ports.SessionRepository
}

func NewSessionService(repo ports.SessionRepository) ports.SessionService {
	return &sessionService{
		repo: repo,
	}
}

func (s *sessionService) GetSession(ctx context.Context, id string) (*domain.VotingSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.repo.GetByID(ctx, id)
}
