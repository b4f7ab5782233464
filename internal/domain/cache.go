package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// VolumeCache caches market 24h volume, shared by scorer instances.
// Get returns ok=false on a cache miss (including expiry).
type VolumeCache interface {
	SetVolume(ctx context.Context, conditionID string, volume float64) error
	GetVolume(ctx context.Context, conditionID string) (volume float64, ok bool, err error)
}

// AgeCache caches resolved wallet ages in days.
type AgeCache interface {
	SetAge(ctx context.Context, address string, ageDays float64) error
	GetAge(ctx context.Context, address string) (ageDays float64, ok bool, err error)
}
