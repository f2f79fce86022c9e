// Package cache provides the shared key-value cache used for fetched dataset
// payloads.
package cache

import (
	"context"
	"time"
)

// Cache is the subset of key-value operations the service relies on.
type Cache interface {
	// Get returns ErrMiss when key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value; a zero ttl never expires.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
