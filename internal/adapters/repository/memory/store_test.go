package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
)

func newVote(sessionID, voterID, receiptID string) (*domain.Vote, domain.AuditDraft) {
	now := time.Unix(1700000000, 0).UTC()
	receipt := domain.Receipt{
		ReceiptID: receiptID,
		AuditHash: integrity.AuditHash(sessionID, receiptID, "vh"),
	}
	vote := &domain.Vote{
		ID:        uuid.New(),
		SessionID: sessionID,
		OptionID:  "A",
		VoterID:   voterID,
		CastAt:    now,
		ReceiptID: receiptID,
		AuditHash: receipt.AuditHash,
	}
	return vote, domain.AuditDraft{SessionID: sessionID, ActorID: voterID, Receipt: receipt, RecordedAt: now}
}

func TestCommitClaimsBallot(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	vote, draft := newVote("S1", "V1", "r1")
	entry, err := store.Commit(ctx, "V1", vote, draft)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), entry.Seq)

	voted, err := store.HasVoted(ctx, "S1", "V1")
	require.NoError(t, err)
	assert.True(t, voted)

	again, againDraft := newVote("S1", "V1", "r2")
	_, err = store.Commit(ctx, "V1", again, againDraft)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	stored, err := store.GetByReceiptID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, vote.ID, stored.ID)

	_, err = store.GetByReceiptID(ctx, "r2")
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}

func TestCommitAnonymousClaimUsesRealIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	vote, draft := newVote("S1", domain.AnonymizedVoterID, "r1")
	_, err := store.Commit(ctx, "V2", vote, draft)
	require.NoError(t, err)

	voted, err := store.HasVoted(ctx, "S1", "V2")
	require.NoError(t, err)
	assert.True(t, voted)

	other, otherDraft := newVote("S1", domain.AnonymizedVoterID, "r2")
	_, err = store.Commit(ctx, "V3", other, otherDraft)
	require.NoError(t, err, "two anonymous voters share the placeholder but not the claim")

	again, againDraft := newVote("S1", domain.AnonymizedVoterID, "r3")
	_, err = store.Commit(ctx, "V2", again, againDraft)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
}

func TestCommitAuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.failAudit = errors.New("disk full")

	vote, draft := newVote("S1", "V1", "r1")
	_, err := store.Commit(ctx, "V1", vote, draft)
	require.ErrorIs(t, err, domain.ErrAuditWrite)

	voted, err := store.HasVoted(ctx, "S1", "V1")
	require.NoError(t, err)
	assert.False(t, voted)

	votes, err := store.ListBySession(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, votes)

	entries, err := store.ListEntries(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Commit(ctx, "V1", vote, draft)
	require.NoError(t, err, "voter may retry after a rolled back cast")
}

func TestCommitCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vote, draft := newVote("S1", "V1", "r1")
	_, err := NewStore().Commit(ctx, "V1", vote, draft)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestConcurrentCommitsKeepChainContiguous(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	const voters = 25
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			voterID := fmt.Sprintf("V%d", i)
			vote, draft := newVote("S1", voterID, fmt.Sprintf("r%d", i))
			_, err := store.Commit(ctx, voterID, vote, draft)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := store.ListEntries(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, entries, voters)
	assert.NoError(t, integrity.VerifyAuditChain("S1", entries))
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	seed := `{"sessions":[{"id":"S1","title":"Board","status":"active","allow_anonymous":true,
		"options":[{"id":"B","label":"No","order":2},{"id":"A","label":"Yes","order":1}],
		"eligibility":{"V9":false}}]}`
	require.NoError(t, store.LoadSeed(strings.NewReader(seed)))

	session, err := store.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.Status)
	require.Len(t, session.Options, 2)
	assert.Equal(t, "A", session.Options[0].ID)
	assert.True(t, session.HasOption("B"))

	eligibility, err := store.GetEligibility(ctx, "S1", "V9")
	require.NoError(t, err)
	require.NotNil(t, eligibility)
	assert.False(t, eligibility.IsEligible)

	missing, err := store.GetEligibility(ctx, "S1", "V1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, ids)

	assert.Error(t, store.LoadSeed(strings.NewReader(`{"sessions":[{"title":"no id"}]}`)))
	assert.Error(t, store.LoadSeed(strings.NewReader(`{"unknown":1}`)))
}
