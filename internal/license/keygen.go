package license

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateKey produces a key of the form XXXX-XXXX-XXXX-XXXX drawn
// uniformly from [A-Z0-9]. Keys are the sole access-control credential, so
// the random source is crypto/rand.
func GenerateKey() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))

	var b strings.Builder
	b.Grow(19)
	for i := 0; i < 16; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}
