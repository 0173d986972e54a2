// Package cache provides a persistent result cache for file-keyed analyses.
//
// A Store keeps analysis results in memory and mirrors every entry to a JSON
// file on disk so that later runs can skip work whose inputs have not changed.
// Key features:
//   - One JSON document per entry, named by the SHA-256 of its composite key
//   - TTL expiration, evaluated lazily on Get and eagerly by Cleanup
//   - Entry-count cap with oldest-write eviction
//   - SHA-256 content fingerprints for change detection of source files
//   - Hit/miss/write/eviction counters and mean retrieval latency
//
// Keys may be namespaced by a category (for example "codeQuality" and
// "security" results for the same path) so that unrelated analyses expire and
// invalidate independently.
//
// Persistence is best-effort: disk failures are logged and the store keeps
// serving from memory. A cache directory is owned by a single Store per
// process; sharing one directory between processes is not supported.
package cache
