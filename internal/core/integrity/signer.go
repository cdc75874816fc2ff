package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

// VotePayload is the signed content of a vote. VoterID is the identifier that
// gets stored: the member id, or the anonymized placeholder.
type VotePayload struct {
	SessionID string
	OptionID  string
	VoterID   string
	Timestamp int64 // Unix seconds
}

type SignatureResult struct {
	Signature string
	VoteHash  string
}

func (p VotePayload) validate() error {
	switch {
	case p.SessionID == "":
		return fmt.Errorf("%w: session id is empty", domain.ErrSigning)
	case p.OptionID == "":
		return fmt.Errorf("%w: option id is empty", domain.ErrSigning)
	case p.VoterID == "":
		return fmt.Errorf("%w: voter id is empty", domain.ErrSigning)
	case p.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp must be positive", domain.ErrSigning)
	}
	return nil
}

// CanonicalVoteMessage returns the byte encoding that is hashed and signed.
func CanonicalVoteMessage(p VotePayload) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	w := fields(tagVote, p.SessionID, p.OptionID, p.VoterID)
	w.int64(p.Timestamp)
	return w.buf, nil
}

// SignVote computes the content hash and the session-keyed MAC of p.
func SignVote(p VotePayload, key SessionKey) (SignatureResult, error) {
	if !key.valid() {
		return SignatureResult{}, fmt.Errorf("%w: session key is not initialised", domain.ErrSigning)
	}
	msg, err := CanonicalVoteMessage(p)
	if err != nil {
		return SignatureResult{}, err
	}
	mac := hmac.New(sha256.New, key.b)
	_, _ = mac.Write(msg)
	return SignatureResult{
		Signature: hexSum(mac),
		VoteHash:  sha256Hex(msg),
	}, nil
}

// VerifyVote recomputes the signature of a stored vote and compares both the
// signature and the content hash.
func VerifyVote(v domain.Vote, key SessionKey) error {
	res, err := SignVote(VotePayload{
		SessionID: v.SessionID,
		OptionID:  v.OptionID,
		VoterID:   v.VoterID,
		Timestamp: v.CastAt.Unix(),
	}, key)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(res.Signature), []byte(v.Signature)) {
		return fmt.Errorf("signature mismatch for receipt %s", v.ReceiptID)
	}
	if res.VoteHash != v.VoterHash {
		return fmt.Errorf("vote hash mismatch for receipt %s", v.ReceiptID)
	}
	return nil
}
