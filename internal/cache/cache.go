// Package cache provides a small in-process LRU cache with per-entry TTL.
// The expense service uses it to memoize per-owner summaries.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}
