package auth

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxRevoked bounds the revocation list. When it overflows the oldest
// entries go first; those belong to the tokens closest to expiring anyway.
const maxRevoked = 10_000

// Revocations remembers logged-out session ids until the tokens carrying
// them would have expired on their own. Entries age out with the session
// TTL, so the list never grows without bound.
type Revocations struct {
	ids *expirable.LRU[string, struct{}]
}

func NewRevocations(sessionTTL time.Duration) *Revocations {
	return &Revocations{ids: expirable.NewLRU[string, struct{}](maxRevoked, nil, sessionTTL)}
}

func (r *Revocations) Revoke(sessionID string) {
	r.ids.Add(sessionID, struct{}{})
}

func (r *Revocations) Revoked(sessionID string) bool {
	return r.ids.Contains(sessionID)
}
