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

// volumeTTL bounds how stale a cached 24h market volume may be before the
// scorer re-fetches it from the venue.
const volumeTTL = time.Hour

// VolumeCache implements domain.VolumeCache using plain Redis keys with a TTL.
type VolumeCache struct {
	rdb *redis.Client
}

// NewVolumeCache creates a VolumeCache backed by the given Client.
func NewVolumeCache(c *Client) *VolumeCache {
	return &VolumeCache{rdb: c.Underlying()}
}

func volumeKey(conditionID string) string {
	return "volume24h:" + conditionID
}

// SetVolume stores the market's 24h volume in USD.
func (vc *VolumeCache) SetVolume(ctx context.Context, conditionID string, volume float64) error {
	val := strconv.FormatFloat(volume, 'f', -1, 64)
	if err := vc.rdb.Set(ctx, volumeKey(conditionID), val, volumeTTL).Err(); err != nil {
		return fmt.Errorf("redis: set volume %s: %w", conditionID, err)
	}
	return nil
}

// GetVolume retrieves the cached 24h volume. ok is false on a miss.
func (vc *VolumeCache) GetVolume(ctx context.Context, conditionID string) (float64, bool, error) {
	val, err := vc.rdb.Get(ctx, volumeKey(conditionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis: get volume %s: %w", conditionID, err)
	}
	volume, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse volume %s: %w", conditionID, err)
	}
	return volume, true, nil
}

// Compile-time interface check.
var _ domain.VolumeCache = (*VolumeCache)(nil)
