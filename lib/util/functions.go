package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Randomness
// --------------------------------------------------------------------------

// GenerateSeed returns a seed from the system random source or the current
// time if the random source is unavailable
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// RandomBytes returns n bytes from the system random source
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// --------------------------------------------------------------------------
// Hashing
// --------------------------------------------------------------------------

// UintKey is a 64 bit hash key
type UintKey uint64

// HashString hashes s with xxhash. Equal seeds give equal keys.
func HashString(s string, seed uint64) UintKey {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.WriteString(s)
	return UintKey(d.Sum64())
}
