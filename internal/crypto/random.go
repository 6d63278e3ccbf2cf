package crypto

import (
	"crypto/rand"
	"math/big"

	"cipherlink/internal/domain"
)

// RandomKey draws a 32-byte symmetric key from crypto/rand.
func RandomKey() (k domain.SymmetricKey, err error) {
	_, err = rand.Read(k[:])
	return k, err
}

// RandomIndex returns a uniformly distributed integer in [0, n).
func RandomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
