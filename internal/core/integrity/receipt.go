package integrity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

const (
	receiptIDBytes = 16
	codeNonceBytes = 16
	codeBytes      = 10
	codeGroup      = 4
)

// DefaultCodeCost is the bcrypt cost for stored verification codes.
const DefaultCodeCost = bcrypt.DefaultCost

type ReceiptPayload struct {
	SessionID   string
	OptionID    string
	MemberID    string
	IsAnonymous bool
}

type ReceiptGenerator struct {
	cost   int
	random io.Reader
}

// NewReceiptGenerator uses crypto/rand for receipt ids. A cost outside the
// bcrypt range falls back to DefaultCodeCost.
func NewReceiptGenerator(cost int) *ReceiptGenerator {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCodeCost
	}
	return &ReceiptGenerator{cost: cost, random: rand.Reader}
}

// GenerateReceipt builds a fresh receipt for a signed vote.
func (g *ReceiptGenerator) GenerateReceipt(p ReceiptPayload, sig SignatureResult) (domain.Receipt, error) {
	if sig.Signature == "" || sig.VoteHash == "" {
		return domain.Receipt{}, fmt.Errorf("%w: signature result is incomplete", domain.ErrReceiptGeneration)
	}
	if p.SessionID == "" || p.OptionID == "" || p.MemberID == "" {
		return domain.Receipt{}, fmt.Errorf("%w: receipt payload is incomplete", domain.ErrReceiptGeneration)
	}

	raw := make([]byte, receiptIDBytes)
	if _, err := io.ReadFull(g.random, raw); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: read random receipt id: %v", domain.ErrReceiptGeneration, err)
	}
	receiptID := hex.EncodeToString(raw)

	// The nonce is never stored, so the code cannot be rebuilt from the row.
	nonce := make([]byte, codeNonceBytes)
	if _, err := io.ReadFull(g.random, nonce); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: read random code nonce: %v", domain.ErrReceiptGeneration, err)
	}
	code := VerificationCode(sig.Signature, receiptID, nonce)
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), g.cost)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: hash verification code: %v", domain.ErrReceiptGeneration, err)
	}

	return domain.Receipt{
		ReceiptID:            receiptID,
		VerificationCode:     code,
		VerificationCodeHash: string(codeHash),
		AuditHash:            AuditHash(p.SessionID, receiptID, sig.VoteHash),
	}, nil
}

// VerificationCode derives the voter-facing code from the signature, the
// receipt id and a one-time nonce, formatted as XXXX-XXXX-XXXX-XXXX.
func VerificationCode(signature, receiptID string, nonce []byte) string {
	sum := sha256.Sum256(fields(tagCode, signature, receiptID, string(nonce)).buf)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:codeBytes])

	groups := make([]string, 0, len(enc)/codeGroup)
	for i := 0; i < len(enc); i += codeGroup {
		groups = append(groups, enc[i:i+codeGroup])
	}
	return strings.Join(groups, "-")
}

// AuditHash links a receipt to the vote content hash and its session without
// exposing the chosen option.
func AuditHash(sessionID, receiptID, voteHash string) string {
	return sha256Hex(fields(tagReceipt, sessionID, receiptID, voteHash).buf)
}

// CheckVerificationCode compares a submitted code against its stored hash.
func CheckVerificationCode(storedHash, code string) bool {
	if storedHash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(code)) == nil
}
