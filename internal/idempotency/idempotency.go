// Package idempotency remembers which order a checkout Idempotency-Key produced
// so a retried request replays the first result instead of failing on an empty cart.
package idempotency

import (
	"context"
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// Key returns the trimmed Idempotency-Key header, or "" when absent.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Store maps (user, key) pairs to order IDs.
type Store interface {
	// Lookup returns the order recorded for the key, or "" when there is none.
	Lookup(ctx context.Context, userID, key string) (string, error)
	// Remember records orderID for the key unless one is already recorded.
	Remember(ctx context.Context, userID, key, orderID string) error
}

func scoped(userID, key string) string {
	return userID + ":" + key
}
