// Package cache holds short-lived in-process values such as pending OAuth
// states and single-use tokens.
package cache

import "time"

// Cache is a key-value store with a TTL per entry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	// Set stores value. A ttl <= 0 never expires.
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	// Take returns the value and removes it in one step.
	Take(key K) (V, bool)
	Len() int
	PurgeExpired()
}
