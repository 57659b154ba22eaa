package placement

import (
	"crypto/rand"
	"math/big"
	"time"
)

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber returns a human-readable order number such as
// ORN-20261019-K7P2QX. Uniqueness is enforced by the store.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(numberAlphabet)))
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return "ORN-" + now.UTC().Format("20060102") + "-" + string(suffix)
}
