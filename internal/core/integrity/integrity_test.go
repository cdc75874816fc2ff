package integrity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func mustKey(t *testing.T, sessionID string) SessionKey {
	t.Helper()
	key, err := DeriveSessionKey(sessionID, testSecret)
	require.NoError(t, err)
	return key
}

func TestDeriveSessionKeyDeterministic(t *testing.T) {
	first := mustKey(t, "s1")
	second := mustKey(t, "s1")
	other := mustKey(t, "s2")

	assert.True(t, first.Equal(second))
	assert.False(t, first.Equal(other))
}

func TestDeriveSessionKeyRejectsBadSecret(t *testing.T) {
	_, err := DeriveSessionKey("s1", nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = DeriveSessionKey("s1", []byte("short"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewKeyDeriver([]byte{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDeriveSessionKeyRequiresSessionID(t *testing.T) {
	_, err := DeriveSessionKey("  ", testSecret)
	assert.ErrorIs(t, err, domain.ErrSigning)

	_, err = DeriveSessionKey("", testSecret)
	assert.ErrorIs(t, err, domain.ErrSigning)
}

func TestDeriveSessionKeyRejectsPaddedSessionID(t *testing.T) {
	for _, id := range []string{" S1", "S1 ", "S1\n", "\tS1"} {
		_, err := DeriveSessionKey(id, testSecret)
		assert.ErrorIs(t, err, domain.ErrSigning, "%q", id)
	}

	_, err := DeriveSessionKey("S1", testSecret)
	assert.NoError(t, err)
}

func TestKeyDeriverMatchesDeriveSessionKey(t *testing.T) {
	deriver, err := NewKeyDeriver(testSecret)
	require.NoError(t, err)

	key, err := deriver.SessionKey("s1")
	require.NoError(t, err)
	assert.True(t, key.Equal(mustKey(t, "s1")))
}

func TestSessionKeyIsRedacted(t *testing.T) {
	key := mustKey(t, "s1")
	assert.Equal(t, "SessionKey(redacted)", fmt.Sprintf("%v", key))
	assert.Equal(t, "SessionKey(redacted)", fmt.Sprintf("%#v", key))
}

func TestSignVoteDeterministic(t *testing.T) {
	key := mustKey(t, "s1")
	payload := VotePayload{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1000}

	first, err := SignVote(payload, key)
	require.NoError(t, err)
	second, err := SignVote(payload, key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Signature, 64)
	assert.Len(t, first.VoteHash, 64)
	assert.NotEqual(t, first.Signature, first.VoteHash)
}

func TestSignVoteChangesWithEveryField(t *testing.T) {
	key := mustKey(t, "s1")
	base := VotePayload{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1000}
	baseline, err := SignVote(base, key)
	require.NoError(t, err)

	variants := map[string]VotePayload{
		"option":    {SessionID: "s1", OptionID: "optA2", VoterID: "voter1", Timestamp: 1000},
		"session":   {SessionID: "s2", OptionID: "optA", VoterID: "voter1", Timestamp: 1000},
		"voter":     {SessionID: "s1", OptionID: "optA", VoterID: "voter2", Timestamp: 1000},
		"timestamp": {SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1001},
		// Shifting bytes between adjacent fields must not collide.
		"boundary": {SessionID: "s1", OptionID: "opt", VoterID: "Avoter1", Timestamp: 1000},
	}
	for name, payload := range variants {
		t.Run(name, func(t *testing.T) {
			got, err := SignVote(payload, key)
			require.NoError(t, err)
			assert.NotEqual(t, baseline.Signature, got.Signature)
			assert.NotEqual(t, baseline.VoteHash, got.VoteHash)
		})
	}
}

func TestSignVoteHashIsKeyIndependent(t *testing.T) {
	payload := VotePayload{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1000}

	a, err := SignVote(payload, mustKey(t, "s1"))
	require.NoError(t, err)
	b, err := SignVote(payload, mustKey(t, "other"))
	require.NoError(t, err)

	assert.Equal(t, a.VoteHash, b.VoteHash)
	assert.NotEqual(t, a.Signature, b.Signature)
}

func TestSignVoteRejectsMalformedPayload(t *testing.T) {
	key := mustKey(t, "s1")
	cases := []VotePayload{
		{OptionID: "optA", VoterID: "voter1", Timestamp: 1000},
		{SessionID: "s1", VoterID: "voter1", Timestamp: 1000},
		{SessionID: "s1", OptionID: "optA", Timestamp: 1000},
		{SessionID: "s1", OptionID: "optA", VoterID: "voter1"},
		{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: -5},
	}
	for _, payload := range cases {
		_, err := SignVote(payload, key)
		assert.ErrorIs(t, err, domain.ErrSigning)
	}

	_, err := SignVote(VotePayload{SessionID: "s1", OptionID: "a", VoterID: "v", Timestamp: 1}, SessionKey{})
	assert.ErrorIs(t, err, domain.ErrSigning)
}

func TestCanonicalVoteMessageLayout(t *testing.T) {
	msg, err := CanonicalVoteMessage(VotePayload{SessionID: "s", OptionID: "o", VoterID: "v", Timestamp: 1})
	require.NoError(t, err)

	want := []byte{0, 0, 0, 16}
	want = append(want, tagVote...)
	want = append(want, 0, 0, 0, 1, 's', 0, 0, 0, 1, 'o', 0, 0, 0, 1, 'v')
	want = append(want, 0, 0, 0, 0, 0, 0, 0, 1)
	assert.Equal(t, want, msg)
}

func TestVerifyVote(t *testing.T) {
	key := mustKey(t, "s1")
	castAt := time.Unix(1700000000, 0).UTC()
	sig, err := SignVote(VotePayload{SessionID: "s1", OptionID: "optA", VoterID: domain.AnonymizedVoterID, Timestamp: castAt.Unix()}, key)
	require.NoError(t, err)

	vote := domain.Vote{
		SessionID: "s1",
		OptionID:  "optA",
		VoterID:   domain.AnonymizedVoterID,
		VoterHash: sig.VoteHash,
		Signature: sig.Signature,
		CastAt:    castAt,
		ReceiptID: "r1",
	}
	require.NoError(t, VerifyVote(vote, key))

	tampered := vote
	tampered.OptionID = "optB"
	assert.Error(t, VerifyVote(tampered, key))

	assert.Error(t, VerifyVote(vote, mustKey(t, "s2")))
}

func testGenerator() *ReceiptGenerator {
	return NewReceiptGenerator(bcrypt.MinCost)
}

func TestGenerateReceipt(t *testing.T) {
	key := mustKey(t, "s1")
	sig, err := SignVote(VotePayload{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1000}, key)
	require.NoError(t, err)

	payload := ReceiptPayload{SessionID: "s1", OptionID: "optA", MemberID: "voter1"}
	receipt, err := testGenerator().GenerateReceipt(payload, sig)
	require.NoError(t, err)

	assert.Len(t, receipt.ReceiptID, 32)
	assert.Regexp(t, `^[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}$`, receipt.VerificationCode)
	assert.NotContains(t, receipt.VerificationCodeHash, receipt.VerificationCode)
	assert.Equal(t, AuditHash("s1", receipt.ReceiptID, sig.VoteHash), receipt.AuditHash)
	assert.NotContains(t, receipt.AuditHash, "optA")
	assert.True(t, CheckVerificationCode(receipt.VerificationCodeHash, receipt.VerificationCode))

	again, err := testGenerator().GenerateReceipt(payload, sig)
	require.NoError(t, err)
	assert.NotEqual(t, receipt.ReceiptID, again.ReceiptID)
	assert.NotEqual(t, receipt.VerificationCode, again.VerificationCode)
}

func TestGenerateReceiptRejectsMalformedSignature(t *testing.T) {
	payload := ReceiptPayload{SessionID: "s1", OptionID: "optA", MemberID: "voter1"}

	_, err := testGenerator().GenerateReceipt(payload, SignatureResult{VoteHash: "abc"})
	assert.ErrorIs(t, err, domain.ErrReceiptGeneration)

	_, err = testGenerator().GenerateReceipt(payload, SignatureResult{Signature: "abc"})
	assert.ErrorIs(t, err, domain.ErrReceiptGeneration)

	_, err = testGenerator().GenerateReceipt(ReceiptPayload{SessionID: "s1"}, SignatureResult{Signature: "a", VoteHash: "b"})
	assert.ErrorIs(t, err, domain.ErrReceiptGeneration)
}

func TestVerificationCodeNotDerivableFromStoredFields(t *testing.T) {
	key := mustKey(t, "s1")
	sig, err := SignVote(VotePayload{SessionID: "s1", OptionID: "optA", VoterID: "voter1", Timestamp: 1000}, key)
	require.NoError(t, err)

	receiptID := bytes.Repeat([]byte{0x01}, receiptIDBytes)
	nonce := bytes.Repeat([]byte{0x02}, codeNonceBytes)
	gen := testGenerator()
	gen.random = bytes.NewReader(append(append([]byte{}, receiptID...), nonce...))

	receipt, err := gen.GenerateReceipt(ReceiptPayload{SessionID: "s1", OptionID: "optA", MemberID: "voter1"}, sig)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(receiptID), receipt.ReceiptID)
	assert.Equal(t, VerificationCode(sig.Signature, receipt.ReceiptID, nonce), receipt.VerificationCode)

	// Signature and receipt id are stored on the vote row; the nonce is not.
	rebuilt := VerificationCode(sig.Signature, receipt.ReceiptID, nil)
	assert.NotEqual(t, receipt.VerificationCode, rebuilt)
	assert.False(t, CheckVerificationCode(receipt.VerificationCodeHash, rebuilt))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateReceiptRandomFailure(t *testing.T) {
	gen := testGenerator()
	gen.random = failingReader{}

	_, err := gen.GenerateReceipt(ReceiptPayload{SessionID: "s1", OptionID: "optA", MemberID: "voter1"}, SignatureResult{Signature: "a", VoteHash: "b"})
	assert.ErrorIs(t, err, domain.ErrReceiptGeneration)
}

func TestCheckVerificationCodeSingleCharacterMutation(t *testing.T) {
	receipt, err := testGenerator().GenerateReceipt(
		ReceiptPayload{SessionID: "s1", OptionID: "optA", MemberID: "voter1"},
		SignatureResult{Signature: "sig", VoteHash: "hash"},
	)
	require.NoError(t, err)

	code := receipt.VerificationCode
	for i := range code {
		replacement := byte('A')
		if code[i] == 'A' {
			replacement = 'B'
		}
		mutated := code[:i] + string(replacement) + code[i+1:]
		assert.False(t, CheckVerificationCode(receipt.VerificationCodeHash, mutated), "mutation at %d accepted", i)
	}
	assert.False(t, CheckVerificationCode(receipt.VerificationCodeHash, strings.ToLower(code)))
	assert.False(t, CheckVerificationCode(receipt.VerificationCodeHash, ""))
	assert.False(t, CheckVerificationCode("", code))
}

func buildChain(t *testing.T, sessionID string, n int) []domain.AuditLogEntry {
	t.Helper()
	var entries []domain.AuditLogEntry
	var prev *domain.AuditLogEntry
	start := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		receiptID := fmt.Sprintf("receipt-%d", i)
		entry, err := AppendAuditEntry(domain.AuditDraft{
			SessionID:  sessionID,
			ActorID:    fmt.Sprintf("voter-%d", i),
			Receipt:    domain.Receipt{ReceiptID: receiptID, AuditHash: AuditHash(sessionID, receiptID, "vh")},
			RecordedAt: start.Add(time.Duration(i) * time.Second),
		}, prev)
		require.NoError(t, err)
		entries = append(entries, entry)
		prev = &entries[len(entries)-1]
	}
	return entries
}

func TestAppendAuditEntryLinksChain(t *testing.T) {
	entries := buildChain(t, "s1", 3)

	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, GenesisHash("s1"), entries[0].PrevHash)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Seq+1, entries[i].Seq)
		assert.Equal(t, entries[i-1].ChainHash, entries[i].PrevHash)
	}
	assert.NotEqual(t, GenesisHash("s1"), GenesisHash("s2"))
}

func TestAppendAuditEntryValidation(t *testing.T) {
	receipt := domain.Receipt{ReceiptID: "r", AuditHash: "h"}

	_, err := AppendAuditEntry(domain.AuditDraft{SessionID: "s1", Receipt: receipt}, nil)
	assert.ErrorIs(t, err, domain.ErrAuditWrite)

	_, err = AppendAuditEntry(domain.AuditDraft{SessionID: "s1", ActorID: "a"}, nil)
	assert.ErrorIs(t, err, domain.ErrAuditWrite)

	prev := &domain.AuditLogEntry{SessionID: "s2", Seq: 1, ChainHash: "x"}
	_, err = AppendAuditEntry(domain.AuditDraft{SessionID: "s1", ActorID: "a", Receipt: receipt}, prev)
	assert.ErrorIs(t, err, domain.ErrAuditWrite)
}

func TestVerifyAuditChainReproducesTail(t *testing.T) {
	entries := buildChain(t, "s1", 5)
	require.NoError(t, VerifyAuditChain("s1", entries))
	require.NoError(t, VerifyAuditChain("s1", nil))
}

func TestVerifyAuditChainDetectsTampering(t *testing.T) {
	mutations := map[string]func(e *domain.AuditLogEntry){
		"actor":     func(e *domain.AuditLogEntry) { e.ActorID = "intruder" },
		"receipt":   func(e *domain.AuditLogEntry) { e.ReceiptID = "forged" },
		"auditHash": func(e *domain.AuditLogEntry) { e.AuditHash = "00" },
		"time":      func(e *domain.AuditLogEntry) { e.RecordedAt = e.RecordedAt.Add(time.Hour) },
		"seq":       func(e *domain.AuditLogEntry) { e.Seq = 99 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			entries := buildChain(t, "s1", 5)
			mutate(&entries[2])

			err := VerifyAuditChain("s1", entries)
			var chainErr *ChainError
			require.ErrorAs(t, err, &chainErr)
			assert.Equal(t, uint64(3), chainErr.Seq)
		})
	}
}

func TestVerifyAuditChainDetectsRecomputedTamper(t *testing.T) {
	entries := buildChain(t, "s1", 4)
	// Fixing up the tampered entry's own hash still breaks its successor.
	entries[1].ActorID = "intruder"
	entries[1].ChainHash = ChainHash(entries[1], entries[1].PrevHash)

	var chainErr *ChainError
	require.ErrorAs(t, VerifyAuditChain("s1", entries), &chainErr)
	assert.Equal(t, uint64(3), chainErr.Seq)
}

func TestVerifyAuditChainDetectsDroppedEntry(t *testing.T) {
	entries := buildChain(t, "s1", 4)
	entries = append(entries[:1], entries[2:]...)

	var chainErr *ChainError
	require.ErrorAs(t, VerifyAuditChain("s1", entries), &chainErr)
	assert.Equal(t, uint64(2), chainErr.Seq)
}
