package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// claimLinkPrefix is the deep link scheme the mobile app registers. The
// opaque part carries the claim code directly.
const claimLinkPrefix = "mezolite://token:"

// ClaimLink builds the shareable deep link for a claim code
func ClaimLink(code string) string {
	return claimLinkPrefix + code
}

// ParseClaimLink extracts and validates the claim code from a deep link.
// Codes are 32 hex characters encoding the 16-byte claim secret.
func ParseClaimLink(raw string) (string, error) {
	if !strings.HasPrefix(raw, claimLinkPrefix) {
		return "", fmt.Errorf("not a claim link: %q", raw)
	}

	code := strings.TrimPrefix(raw, claimLinkPrefix)
	if len(code) != 32 {
		return "", fmt.Errorf("claim code must be 32 characters, got %d", len(code))
	}
	if _, err := hex.DecodeString(code); err != nil {
		return "", fmt.Errorf("claim code is not hex: %w", err)
	}

	return code, nil
}

// PendingClaims queues claim codes arriving via deep link before the wallet
// is connected. The app drains the queue once a session exists.
type PendingClaims struct {
	mu    sync.Mutex
	codes []string
	seen  map[string]bool
}

// NewPendingClaims creates an empty claim queue
func NewPendingClaims() *PendingClaims {
	return &PendingClaims{seen: make(map[string]bool)}
}

// Add parses a deep link and queues its claim code. Re-opening the same
// link is a no-op.
func (q *PendingClaims) Add(rawLink string) error {
	code, err := ParseClaimLink(rawLink)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[code] {
		return nil
	}
	q.seen[code] = true
	q.codes = append(q.codes, code)
	return nil
}

// Drain returns the queued codes in arrival order and empties the queue
func (q *PendingClaims) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.codes
	q.codes = nil
	q.seen = make(map[string]bool)
	return out
}

// Len returns the number of queued codes
func (q *PendingClaims) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.codes)
}
