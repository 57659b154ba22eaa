package idempotency

import (
	"net/http"
	"strings"
)

const (
	Header = "Idempotency-Key"
	// ReplayHeader is set on responses that return a previously created resource.
	ReplayHeader = "Idempotent-Replay"
	MaxKeyLength = 255
)

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Valid reports whether key is usable. An empty key means the client opted out.
func Valid(key string) bool {
	if len(key) > MaxKeyLength {
		return false
	}
	for _, c := range key {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
