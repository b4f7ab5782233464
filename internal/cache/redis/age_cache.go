package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ageTTL bounds cached wallet ages. A wallet only gets older, so a long TTL
// is safe; re-resolving daily keeps the age signal honest for young wallets.
const ageTTL = 24 * time.Hour

// AgeCache implements domain.AgeCache using plain Redis keys with a TTL.
// Resolving a wallet's age costs an RPC nonce lookup plus an activity scan,
// so the result is shared across scorer instances.
type AgeCache struct {
	rdb *redis.Client
}

// NewAgeCache creates an AgeCache backed by the given Client.
func NewAgeCache(c *Client) *AgeCache {
	return &AgeCache{rdb: c.Underlying()}
}

func ageKey(address string) string {
	return "walletage:" + address
}

// SetAge stores the wallet's resolved age in days.
func (ac *AgeCache) SetAge(ctx context.Context, address string, ageDays float64) error {
	val := strconv.FormatFloat(ageDays, 'f', -1, 64)
	if err := ac.rdb.Set(ctx, ageKey(address), val, ageTTL).Err(); err != nil {
		return fmt.Errorf("redis: set wallet age %s: %w", address, err)
	}
	return nil
}

// GetAge retrieves the cached wallet age in days. ok is false on a miss.
func (ac *AgeCache) GetAge(ctx context.Context, address string) (float64, bool, error) {
	val, err := ac.rdb.Get(ctx, ageKey(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis: get wallet age %s: %w", address, err)
	}
	age, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse wallet age %s: %w", address, err)
	}
	return age, true, nil
}

// Compile-time interface check.
var _ domain.AgeCache = (*AgeCache)(nil)
