// Package fingerprint computes the canonical payload digest used by the
// idempotency gate. The digest covers every payload field except the load
// identifier, so two records collide iff customer, instant, and amount all
// match exactly.
package fingerprint

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"

	"loadgate/money"
)

// Sum is a 256-bit payload digest.
type Sum [32]byte

// Hex returns the lowercase hexadecimal form of the digest.
func (s Sum) Hex() string {
	return hex.EncodeToString(s[:])
}

// Compute derives the digest from the canonical byte encoding of the
// payload: length-delimited UTF-8 customer identifier, the UTC instant as a
// big-endian nanosecond integer, and the length-delimited minor-unit bytes
// of the amount.
func Compute(customerID string, at time.Time, amount money.Amount) Sum {
	buf := bytes.NewBuffer(nil)
	writeDelimited(buf, []byte(customerID))
	var nanos [8]byte
	binary.BigEndian.PutUint64(nanos[:], uint64(at.UTC().UnixNano()))
	buf.Write(nanos[:])
	writeDelimited(buf, amount.Minor().Bytes())
	return blake3.Sum256(buf.Bytes())
}

func writeDelimited(buf *bytes.Buffer, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[:])
	buf.Write(data)
}
