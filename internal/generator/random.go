package generator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
)

// randomInt generates a cryptographically secure random number in [0, max).
func randomInt(max int) int {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}

	n := binary.BigEndian.Uint64(b[:])
	return int(n % uint64(max))
}

// randomHex returns n random bytes hex-encoded.
func randomHex(n int) string {
	b := make([]byte, n/2)
	rand.Read(b)
	return hex.EncodeToString(b)
}
