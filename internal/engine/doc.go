// Package engine runs analyzers over source files and caches their results.
//
// A Runner consults the cache before invoking an analyzer. A cached result is
// reused when all of the following hold:
//   - the file's contents still match the fingerprint stored with the result
//   - the result has not expired
//   - it was produced by a compatible analyzer version
//
// Otherwise the analyzer runs and its output replaces the cached entry.
//
// Analyzer names double as cache categories, so two analyzers never see each
// other's results for the same file.
package engine
