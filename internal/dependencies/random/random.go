// Package random supplies the randomness behind colour assignment, session
// tokens and the random bot.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Random is the source of randomness for the server
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// Hex returns n random bytes, hex encoded
	Hex(n int) string
}

// Crypto draws from crypto/rand
type Crypto struct{}

// New returns the crypto/rand backed source
func New() Crypto {
	return Crypto{}
}

// Intn returns a uniform int in [0, n), or 0 when n is not positive
func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	max := big.NewInt(int64(n))
	result, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// Hex returns n random bytes as a hex string
func (Crypto) Hex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
