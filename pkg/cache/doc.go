// Package cache provides the response cache that deduplicates identical
// completion requests.
//
// Requests are keyed by Fingerprint, the SHA-256 of the model, the normalized
// messages, the temperature and max tokens. A ResponseCache serves an entry
// only while it is younger than the TTL and only for the model that produced
// it; anything else is deleted on read. A TTL of 0 disables the cache.
//
// Two stores are provided:
//
//   - MemoryStore: an in-process map with an optional entry bound
//   - RedisStore: JSON values under a key prefix with native Redis expiry
//
// Start runs a background sweep that removes expired entries from stores
// without native expiry.
package cache
