package integrity

import (
	"fmt"
	"time"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

// GenesisHash is the predecessor hash of the first entry of a session.
func GenesisHash(sessionID string) string {
	return sha256Hex(fields(tagGenesis, sessionID).buf)
}

// ChainHash computes the hash that links entry to prevHash.
func ChainHash(entry domain.AuditLogEntry, prevHash string) string {
	w := fields(tagAudit, entry.SessionID, entry.ActorID, entry.ReceiptID, entry.AuditHash, prevHash)
	w.uint64(entry.Seq)
	w.int64(entry.RecordedAt.Unix())
	return sha256Hex(w.buf)
}

// AppendAuditEntry builds the entry that follows prev in the session chain.
// prev is nil for the first entry. The caller must hold the session's chain
// tail while it persists the result.
func AppendAuditEntry(draft domain.AuditDraft, prev *domain.AuditLogEntry) (domain.AuditLogEntry, error) {
	if draft.SessionID == "" || draft.ActorID == "" {
		return domain.AuditLogEntry{}, fmt.Errorf("%w: session and actor are required", domain.ErrAuditWrite)
	}
	if draft.Receipt.ReceiptID == "" || draft.Receipt.AuditHash == "" {
		return domain.AuditLogEntry{}, fmt.Errorf("%w: receipt is incomplete", domain.ErrAuditWrite)
	}

	seq := uint64(1)
	prevHash := GenesisHash(draft.SessionID)
	if prev != nil {
		if prev.SessionID != draft.SessionID {
			return domain.AuditLogEntry{}, fmt.Errorf("%w: predecessor belongs to session %s", domain.ErrAuditWrite, prev.SessionID)
		}
		if prev.ChainHash == "" {
			return domain.AuditLogEntry{}, fmt.Errorf("%w: predecessor has no chain hash", domain.ErrAuditWrite)
		}
		seq = prev.Seq + 1
		prevHash = prev.ChainHash
	}

	entry := domain.AuditLogEntry{
		SessionID:  draft.SessionID,
		Seq:        seq,
		ActorID:    draft.ActorID,
		ReceiptID:  draft.Receipt.ReceiptID,
		AuditHash:  draft.Receipt.AuditHash,
		PrevHash:   prevHash,
		RecordedAt: draft.RecordedAt.UTC().Truncate(time.Second),
	}
	entry.ChainHash = ChainHash(entry, prevHash)
	return entry, nil
}

// ChainError reports the first entry at which a chain stops verifying.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at seq %d: %s", e.Seq, e.Reason)
}

// VerifyAuditChain recomputes every link of a session's chain, given entries
// in ascending sequence order.
func VerifyAuditChain(sessionID string, entries []domain.AuditLogEntry) error {
	prevHash := GenesisHash(sessionID)
	for i, entry := range entries {
		want := uint64(i + 1)
		switch {
		case entry.Seq != want:
			return &ChainError{Seq: want, Reason: fmt.Sprintf("sequence gap, found %d", entry.Seq)}
		case entry.SessionID != sessionID:
			return &ChainError{Seq: want, Reason: "entry belongs to another session"}
		case entry.PrevHash != prevHash:
			return &ChainError{Seq: want, Reason: "previous hash mismatch"}
		case ChainHash(entry, prevHash) != entry.ChainHash:
			return &ChainError{Seq: want, Reason: "chain hash mismatch"}
		}
		prevHash = entry.ChainHash
	}
	return nil
}
