package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

// SessionRepository reads sessions owned by the governance workflows. Save
// and SaveEligibility exist for provisioning and tests; the vote path never
// calls them.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{
		db: db,
	}
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.VotingSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	querySession := `
		INSERT INTO voting_sessions (id, title, status, scheduled_end_time, allow_anonymous, quorum_percent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, querySession, session.ID, session.Title, session.Status,
		session.ScheduledEndTime, session.AllowAnonymous, session.QuorumPercent)
	if err != nil {
		return fmt.Errorf("failed to insert voting session: %w", err)
	}

	queryOption := `
		INSERT INTO voting_options (id, session_id, label, display_order)
		VALUES ($1, $2, $3, $4)
	`
	stmt, err := tx.PrepareContext(ctx, queryOption)
	if err != nil {
		return fmt.Errorf("failed to prepare option statement: %w", err)
	}
	defer stmt.Close()

	for _, opt := range session.Options {
		_, err = stmt.ExecContext(ctx, opt.ID, session.ID, opt.Label, opt.Order)
		if err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) SaveEligibility(ctx context.Context, e domain.VoterEligibility) error {
	query := `
		INSERT INTO voter_eligibility (session_id, member_id, is_eligible)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, member_id) DO UPDATE SET is_eligible = EXCLUDED.is_eligible
	`
	_, err := r.db.ExecContext(ctx, query, e.SessionID, e.MemberID, e.IsEligible)
	if err != nil {
		return fmt.Errorf("failed to save eligibility: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.VotingSession, error) {
	querySession := `
		SELECT id, title, status, scheduled_end_time, allow_anonymous, quorum_percent, created_at
		FROM voting_sessions
		WHERE id = $1
	`

	var session domain.VotingSession
	var endTime sql.NullTime
	err := r.db.QueryRowContext(ctx, querySession, id).Scan(
		&session.ID, &session.Title, &session.Status, &endTime,
		&session.AllowAnonymous, &session.QuorumPercent, &session.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get voting session: %w", err)
	}
	if endTime.Valid {
		session.ScheduledEndTime = &endTime.Time
	}

	options, err := r.fetchOptions(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Options = options

	return &session, nil
}

func (r *SessionRepository) GetEligibility(ctx context.Context, sessionID, memberID string) (*domain.VoterEligibility, error) {
	query := `
		SELECT session_id, member_id, is_eligible
		FROM voter_eligibility
		WHERE session_id = $1 AND member_id = $2
	`
	var e domain.VoterEligibility
	err := r.db.QueryRowContext(ctx, query, sessionID, memberID).Scan(&e.SessionID, &e.MemberID, &e.IsEligible)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get eligibility: %w", err)
	}
	return &e, nil
}

func (r *SessionRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM voting_sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list voting sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voting session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating voting sessions: %w", err)
	}
	return ids, nil
}

func (r *SessionRepository) fetchOptions(ctx context.Context, sessionID string) ([]domain.VotingOption, error) {
	queryOptions := `
		SELECT id, session_id, label, display_order
		FROM voting_options
		WHERE session_id = $1
		ORDER BY display_order, id
	`
	rows, err := r.db.QueryContext(ctx, queryOptions, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get voting options: %w", err)
	}
	defer rows.Close()

	var options []domain.VotingOption
	for rows.Next() {
		var opt domain.VotingOption
		if err := rows.Scan(&opt.ID, &opt.SessionID, &opt.Label, &opt.Order); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}
