// Package redis persists agent conversation memory in Redis lists, one list
// per thread id, with an optional expiry refreshed on every append.
package redis
