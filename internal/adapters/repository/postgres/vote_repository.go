package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
)

const (
	ballotClaimsPKey        = "ballot_claims_pkey"
	votesReceiptKey         = "votes_receipt_id_key"
	votesIdentifiedVoterKey = "votes_session_voter_identified"
)

const voteColumns = `id, session_id, option_id, voter_id, voter_hash, signature, is_anonymous,
		cast_at, receipt_id, verification_code_hash, audit_hash`

// VoteRepository stores votes, ballot claims and the audit chain. It also
// serves the audit log reads.
type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) *VoteRepository {
	return &VoteRepository{
		db: db,
	}
}

func (r *VoteRepository) HasVoted(ctx context.Context, sessionID, voterID string) (bool, error) {
	query := `SELECT 1 FROM ballot_claims WHERE session_id = $1 AND voter_id = $2 LIMIT 1`
	var exists int
	err := r.db.QueryRowContext(ctx, query, sessionID, voterID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to check ballot claim: %v", domain.ErrPersistence, err)
	}
	return true, nil
}

func (r *VoteRepository) Commit(ctx context.Context, voterID string, vote *domain.Vote, draft domain.AuditDraft) (*domain.AuditLogEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	// Serializes appends to the session chain until commit or rollback.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, vote.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock audit chain: %v", domain.ErrPersistence, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO ballot_claims (session_id, voter_id) VALUES ($1, $2)`, vote.SessionID, voterID)
	if err != nil {
		if isUniqueViolation(err, ballotClaimsPKey) {
			return nil, domain.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("%w: failed to claim ballot: %v", domain.ErrPersistence, err)
	}

	queryVote := `
		INSERT INTO votes (` + voteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, queryVote,
		vote.ID, vote.SessionID, vote.OptionID, vote.VoterID, vote.VoterHash, vote.Signature,
		vote.IsAnonymous, vote.CastAt, vote.ReceiptID, vote.VerificationCodeHash, vote.AuditHash,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, votesIdentifiedVoterKey):
			return nil, domain.ErrAlreadyVoted
		case isUniqueViolation(err, votesReceiptKey):
			return nil, fmt.Errorf("%w: receipt id collision", domain.ErrPersistence)
		}
		return nil, fmt.Errorf("%w: failed to insert vote: %v", domain.ErrPersistence, err)
	}

	prev, err := lastAuditEntry(ctx, tx, vote.SessionID)
	if err != nil {
		return nil, err
	}
	entry, err := integrity.AppendAuditEntry(draft, prev)
	if err != nil {
		return nil, err
	}

	queryAudit := `
		INSERT INTO vote_audit_log (session_id, seq, actor_id, receipt_id, audit_hash, prev_hash, chain_hash, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, queryAudit, entry.SessionID, int64(entry.Seq), entry.ActorID, entry.ReceiptID,
		entry.AuditHash, entry.PrevHash, entry.ChainHash, entry.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert audit entry: %v", domain.ErrAuditWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", domain.ErrPersistence, err)
	}

	return &entry, nil
}

func lastAuditEntry(ctx context.Context, tx *sql.Tx, sessionID string) (*domain.AuditLogEntry, error) {
	query := `
		SELECT session_id, seq, actor_id, receipt_id, audit_hash, prev_hash, chain_hash, recorded_at
		FROM vote_audit_log
		WHERE session_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	entry, err := scanAuditEntry(tx.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read audit chain tail: %v", domain.ErrAuditWrite, err)
	}
	return entry, nil
}

func (r *VoteRepository) GetByReceiptID(ctx context.Context, receiptID string) (*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE receipt_id = $1`
	vote, err := scanVote(r.db.QueryRowContext(ctx, query, receiptID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("%w: failed to get vote: %v", domain.ErrPersistence, err)
	}
	return vote, nil
}

func (r *VoteRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE session_id = $1 ORDER BY cast_at, receipt_id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list votes: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var votes []*domain.Vote
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func (r *VoteRepository) ListEntries(ctx context.Context, sessionID string) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT session_id, seq, actor_id, receipt_id, audit_hash, prev_hash, chain_hash, recorded_at
		FROM vote_audit_log
		WHERE session_id = $1
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list audit entries: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVote(row scanner) (*domain.Vote, error) {
	var v domain.Vote
	err := row.Scan(&v.ID, &v.SessionID, &v.OptionID, &v.VoterID, &v.VoterHash, &v.Signature,
		&v.IsAnonymous, &v.CastAt, &v.ReceiptID, &v.VerificationCodeHash, &v.AuditHash)
	if err != nil {
		return nil, err
	}
	v.CastAt = v.CastAt.UTC()
	return &v, nil
}

func scanAuditEntry(row scanner) (*domain.AuditLogEntry, error) {
	var e domain.AuditLogEntry
	var seq int64
	err := row.Scan(&e.SessionID, &seq, &e.ActorID, &e.ReceiptID, &e.AuditHash, &e.PrevHash, &e.ChainHash, &e.RecordedAt)
	if err != nil {
		return nil, err
	}
	e.Seq = uint64(seq)
	e.RecordedAt = e.RecordedAt.UTC()
	return &e, nil
}
