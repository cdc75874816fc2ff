package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

const (
	tagVote    = "votecast.vote.v1"
	tagCode    = "votecast.code.v1"
	tagReceipt = "votecast.receipt.v1"
	tagAudit   = "votecast.audit.v1"
	tagGenesis = "votecast.audit.genesis.v1"
)

// fieldWriter writes length-prefixed fields so no two field lists share an
// encoding regardless of their contents.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) str(s string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *fieldWriter) int64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *fieldWriter) uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func fields(values ...string) *fieldWriter {
	w := &fieldWriter{}
	for _, v := range values {
		w.str(v)
	}
	return w
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
