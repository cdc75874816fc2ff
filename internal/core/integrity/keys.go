package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
)

// MinSecretLength is the shortest master secret accepted for HMAC-SHA256.
const MinSecretLength = 32

const sessionKeyLength = 32

// SessionKey is the symmetric key of one voting session. It never prints its
// bytes.
type SessionKey struct {
	b []byte
}

func (k SessionKey) String() string {
	return "SessionKey(redacted)"
}

func (k SessionKey) GoString() string {
	return k.String()
}

// Equal compares two keys in constant time.
func (k SessionKey) Equal(other SessionKey) bool {
	return len(k.b) > 0 && hmac.Equal(k.b, other.b)
}

func (k SessionKey) valid() bool {
	return len(k.b) == sessionKeyLength
}

// DeriveSessionKey derives the key of sessionID from masterSecret with
// HKDF-SHA256. The result is deterministic.
func DeriveSessionKey(sessionID string, masterSecret []byte) (SessionKey, error) {
	if err := checkSecret(masterSecret); err != nil {
		return SessionKey{}, err
	}
	if sessionID == "" {
		return SessionKey{}, fmt.Errorf("%w: session id is required", domain.ErrSigning)
	}
	if strings.TrimSpace(sessionID) != sessionID {
		return SessionKey{}, fmt.Errorf("%w: session id has surrounding whitespace", domain.ErrSigning)
	}
	key, err := hkdf.Key(sha256.New, masterSecret, nil, "votecast:session:"+sessionID, sessionKeyLength)
	if err != nil {
		return SessionKey{}, fmt.Errorf("%w: derive session key: %v", domain.ErrConfiguration, err)
	}
	return SessionKey{b: key}, nil
}

func checkSecret(secret []byte) error {
	if len(secret) == 0 {
		return fmt.Errorf("%w: master secret is not set", domain.ErrConfiguration)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: master secret must be at least %d bytes", domain.ErrConfiguration, MinSecretLength)
	}
	return nil
}

// KeyDeriver holds the process-wide master secret.
type KeyDeriver struct {
	secret []byte
}

// NewKeyDeriver fails when the secret is unusable. Callers should treat that
// as fatal at startup.
func NewKeyDeriver(masterSecret []byte) (*KeyDeriver, error) {
	if err := checkSecret(masterSecret); err != nil {
		return nil, err
	}
	secret := make([]byte, len(masterSecret))
	copy(secret, masterSecret)
	return &KeyDeriver{secret: secret}, nil
}

func (d *KeyDeriver) SessionKey(sessionID string) (SessionKey, error) {
	if d == nil {
		return SessionKey{}, fmt.Errorf("%w: key deriver is not configured", domain.ErrConfiguration)
	}
	return DeriveSessionKey(sessionID, d.secret)
}
