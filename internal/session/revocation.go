package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "session:revoked:"

// Denylist is an optional server-side revocation list keyed by the token ID
// claim. The default deployment runs without one, so bearer tokens stay
// valid until expiry or a secret rotation. Wiring a Redis client in makes
// individual stolen tokens revocable without rotating everyone out.
//
// Entries carry a TTL matching the remaining token lifetime, so the list
// stays bounded by the number of revocations inside one session window.
type Denylist struct {
	rdb *redis.Client
}

func NewDenylist(rdb *redis.Client) (*Denylist, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	return &Denylist{rdb: rdb}, nil
}

// Revoke marks a token ID invalid for ttl. Pass the time left until the
// token's natural expiry; anything longer just wastes memory.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return errors.New("tokenID is required")
	}
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return d.rdb.Set(ctx, denylistKeyPrefix+tokenID, "1", ttl).Err()
}

func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
